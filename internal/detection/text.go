package detection

import (
	"context"
	"image"
	"math"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

// ClassText is the single class emitted by TextRegionDetector.
const ClassText = 0

// Bounds is an integer pixel box with exclusive X2/Y2.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the bounds to a geometry.Rect.
func (b Bounds) Rect() geometry.Rect {
	return geometry.Rect{
		X:      float64(b.X1),
		Y:      float64(b.Y1),
		Width:  float64(b.X2 - b.X1),
		Height: float64(b.Y2 - b.Y1),
	}
}

// TextRegionDetector finds regions likely to contain text. It looks for
// windows with medium edge density and mostly horizontal edge runs, then
// merges overlapping windows.
type TextRegionDetector struct {
	MinConfidence float64
}

// ClassNames implements ClassNamer.
func (d *TextRegionDetector) ClassNames() []string {
	return []string{"text"}
}

type textRegion struct {
	bounds     Bounds
	confidence float64
}

// Predict implements Detector.
func (d *TextRegionDetector) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := detectEdges(img, width, height)

	windowSizes := []struct{ w, h int }{
		{100, 30}, // small text
		{150, 40}, // medium
		{200, 50}, // large
		{80, 25},  // very small
	}

	candidates := make([]textRegion, 0)

	for _, ws := range windowSizes {
		stepX := ws.w / 2
		stepY := ws.h / 2

		for y := 0; y <= height-ws.h; y += stepY {
			for x := 0; x <= width-ws.w; x += stepX {
				edgeCount := 0
				for wy := 0; wy < ws.h; wy++ {
					for wx := 0; wx < ws.w; wx++ {
						if edges[y+wy][x+wx] {
							edgeCount++
						}
					}
				}

				density := float64(edgeCount) / float64(ws.w*ws.h)
				if density < 0.05 || density > 0.4 {
					continue
				}

				horizontalScore := calculateHorizontalScore(edges, x, y, ws.w, ws.h)
				confidence := horizontalScore * (1.0 - math.Abs(density-0.2)/0.2)

				if confidence >= d.MinConfidence {
					candidates = append(candidates, textRegion{
						bounds:     Bounds{X1: x, Y1: y, X2: x + ws.w, Y2: y + ws.h},
						confidence: math.Round(confidence*1000) / 1000,
					})
				}
			}
		}
	}

	merged := mergeOverlappingRegions(candidates)

	boxes := make([]Box, 0, len(merged))
	for _, r := range merged {
		boxes = append(boxes, Box{ClassID: ClassText, Rect: r.bounds.Rect(), Confidence: r.confidence})
	}
	return toDetections(boxes, width, height), nil
}

// calculateHorizontalScore returns the share of horizontal edge runs among
// all runs in the window.
func calculateHorizontalScore(edges [][]bool, x, y, w, h int) float64 {
	horizontalRuns := 0
	verticalRuns := 0

	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row][col] {
				if !inRun {
					horizontalRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row][col] {
				if !inRun {
					verticalRuns++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	if horizontalRuns+verticalRuns == 0 {
		return 0
	}
	return float64(horizontalRuns) / float64(horizontalRuns+verticalRuns)
}

func mergeOverlappingRegions(regions []textRegion) []textRegion {
	if len(regions) == 0 {
		return regions
	}

	merged := make([]textRegion, 0)

	for _, r := range regions {
		foundMerge := false
		for i := range merged {
			if regionsOverlap(r.bounds, merged[i].bounds) {
				merged[i].bounds = mergeBounds(r.bounds, merged[i].bounds)
				merged[i].confidence = math.Max(r.confidence, merged[i].confidence)
				foundMerge = true
				break
			}
		}
		if !foundMerge {
			merged = append(merged, r)
		}
	}

	return merged
}

func regionsOverlap(a, b Bounds) bool {
	return a.X1 < b.X2 && a.X2 > b.X1 && a.Y1 < b.Y2 && a.Y2 > b.Y1
}

func mergeBounds(a, b Bounds) Bounds {
	return Bounds{
		X1: min(a.X1, b.X1),
		Y1: min(a.Y1, b.Y1),
		X2: max(a.X2, b.X2),
		Y2: max(a.Y2, b.Y2),
	}
}
