package detection

import (
	"context"
	"image"
	"sort"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

// Detection is one predicted box as a YOLO line plus its confidence.
type Detection struct {
	Line       string  `json:"line"`
	Confidence float64 `json:"confidence"`
}

// Detector produces predictions for a single image.
type Detector interface {
	Predict(ctx context.Context, img image.Image) ([]Detection, error)
}

// ClassNamer is implemented by detectors that know their class labels.
type ClassNamer interface {
	ClassNames() []string
}

// Box is a pixel-space detection used internally by the backends before
// conversion to lines.
type Box struct {
	ClassID    int
	Rect       geometry.Rect
	Confidence float64
}

// Detection normalizes the box against an image of size imgW x imgH.
func (b Box) Detection(imgW, imgH int) Detection {
	return Detection{
		Line:       geometry.ToLine(b.ClassID, b.Rect, imgW, imgH),
		Confidence: b.Confidence,
	}
}

// toDetections sorts boxes by descending confidence and converts them.
func toDetections(boxes []Box, imgW, imgH int) []Detection {
	sortByConfidence(boxes)
	out := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, b.Detection(imgW, imgH))
	}
	return out
}

func sortByConfidence(boxes []Box) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})
}

// FromDetections parses detections back into pixel boxes for an image of size
// imgW x imgH. Lines that do not parse are returned in skipped.
func FromDetections(dets []Detection, imgW, imgH int) (boxes []Box, skipped []string) {
	boxes = make([]Box, 0, len(dets))
	for _, d := range dets {
		rec, err := geometry.ParseLine(d.Line)
		if err != nil {
			skipped = append(skipped, d.Line)
			continue
		}
		boxes = append(boxes, Box{
			ClassID:    rec.ClassID,
			Rect:       rec.ToRect(imgW, imgH),
			Confidence: d.Confidence,
		})
	}
	return boxes, skipped
}
