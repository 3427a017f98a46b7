package detection

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Sliced runs an inner Detector over overlapping square tiles and merges the
// per-tile boxes with class-aware greedy NMS. Small objects in large images
// are found more reliably this way.
type Sliced struct {
	Inner        Detector
	SliceSize    int     // tile edge in pixels, e.g. 640
	Overlap      float64 // overlap ratio between neighbouring tiles, e.g. 0.2
	IoUThreshold float64 // NMS threshold for merging tile results
}

// NewSliced wraps inner with the given tiling parameters.
func NewSliced(inner Detector, sliceSize int, overlap, iouThreshold float64) *Sliced {
	return &Sliced{Inner: inner, SliceSize: sliceSize, Overlap: overlap, IoUThreshold: iouThreshold}
}

// ClassNames forwards to the inner detector when it knows its classes.
func (s *Sliced) ClassNames() []string {
	if namer, ok := s.Inner.(ClassNamer); ok {
		return namer.ClassNames()
	}
	return nil
}

// Predict implements Detector.
func (s *Sliced) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	if s.SliceSize <= 0 {
		return nil, errors.Errorf("invalid slice size %d", s.SliceSize)
	}
	if s.Overlap < 0 || s.Overlap >= 1 {
		return nil, errors.Errorf("invalid slice overlap %.2f", s.Overlap)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	xs := tilePositions(width, s.SliceSize, s.Overlap)
	ys := tilePositions(height, s.SliceSize, s.Overlap)

	all := make([]Box, 0)
	for _, y := range ys {
		for _, x := range xs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			tileRect := image.Rect(x, y, x+s.SliceSize, y+s.SliceSize).
				Add(bounds.Min).
				Intersect(bounds)
			tile := imaging.Crop(img, tileRect)
			tw, th := tile.Bounds().Dx(), tile.Bounds().Dy()

			dets, err := s.Inner.Predict(ctx, tile)
			if err != nil {
				return nil, errors.Wrapf(err, "tile at %d,%d", x, y)
			}

			boxes, skipped := FromDetections(dets, tw, th)
			for _, line := range skipped {
				log.WithField("line", line).Warn("discarding malformed tile prediction")
			}
			for _, b := range boxes {
				b.Rect = b.Rect.Translate(float64(x), float64(y))
				all = append(all, b)
			}
		}
	}

	merged := ApplyGreedyNMS(all, NMSConfig{IoUThreshold: s.IoUThreshold, ClassAware: true})
	return toDetections(merged, width, height), nil
}

// tilePositions returns tile start offsets along one axis. Tiles advance by
// size*(1-overlap) and the last tile is aligned with the far edge so the
// whole axis is covered. An axis no longer than size gets a single tile.
func tilePositions(length, size int, overlap float64) []int {
	if length <= size {
		return []int{0}
	}

	step := int(math.Floor(float64(size) * (1 - overlap)))
	if step < 1 {
		step = 1
	}

	positions := make([]int, 0, length/step+1)
	for p := 0; ; p += step {
		if p+size >= length {
			positions = append(positions, length-size)
			break
		}
		positions = append(positions, p)
	}
	return positions
}
