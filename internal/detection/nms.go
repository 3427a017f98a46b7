package detection

import "github.com/ironsheep/annotation-corrector/internal/geometry"

// NMSConfig defines parameters for non-maximum suppression.
type NMSConfig struct {
	IoUThreshold float64 // Overlap above which the weaker box is suppressed.
	ClassAware   bool    // If true, only boxes of the same class suppress each other.
}

// ApplyGreedyNMS performs standard greedy non-maximum suppression.
//
// Boxes are sorted by descending confidence first; ties keep input order.
// The returned slice is in that sorted order.
func ApplyGreedyNMS(boxes []Box, config NMSConfig) []Box {
	n := len(boxes)
	if n == 0 {
		return nil
	}

	sorted := make([]Box, n)
	copy(sorted, boxes)
	sortByConfidence(sorted)

	filtered := make([]Box, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[j].ClassID != anchor.ClassID {
				continue
			}
			if geometry.IoU(anchor.Rect, sorted[j].Rect) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
