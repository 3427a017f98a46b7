package review

import (
	"image"

	"github.com/ironsheep/annotation-corrector/internal/detection"
	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/pkg/errors"
)

// ErrIndexOutOfRange is returned when a box index does not exist.
var ErrIndexOutOfRange = errors.New("index out of range")

// Box is the YOLO line shared by predictions and labels. The line is kept
// verbatim until its geometry is edited, at which point it is re-serialised
// with six decimals.
type Box struct {
	Line string `json:"line"`
}

// Record parses the box line.
func (b Box) Record() (geometry.BoxRecord, error) {
	return geometry.ParseLine(b.Line)
}

// ClassID returns the class of the box, or -1 if the line does not parse.
func (b Box) ClassID() int {
	rec, err := b.Record()
	if err != nil {
		return -1
	}
	return rec.ClassID
}

// Rect returns the pixel rectangle of the box for an imgW x imgH image.
func (b Box) Rect(imgW, imgH int) (geometry.Rect, error) {
	rec, err := b.Record()
	if err != nil {
		return geometry.Rect{}, err
	}
	return rec.ToRect(imgW, imgH), nil
}

// PredictionState is one model prediction under review.
type PredictionState struct {
	Box
	Confidence float64 `json:"confidence"`
	Accepted   bool    `json:"accepted"`
	// Disagrees is set by FlagPredictions.
	Disagrees bool `json:"disagrees"`
}

// LabelState is one existing label under review.
type LabelState struct {
	Box
	Kept bool `json:"kept"`
}

// ImageSession is the review state of one queued image.
type ImageSession struct {
	ImagePath   string
	LabelPath   string // corrected label file written on save
	Image       image.Image
	Width       int
	Height      int
	Predictions []PredictionState
	Labels      []LabelState
	// Discarded holds label lines that failed to parse when the session was
	// built. They are not part of the review and are lost on save.
	Discarded []string
}

// NewImageSession builds the initial state for an image: predictions
// rejected, labels kept, disagreement flags computed.
func NewImageSession(imagePath, labelPath string, img image.Image, preds []detection.Detection, labelLines []string) *ImageSession {
	b := img.Bounds()
	s := &ImageSession{
		ImagePath:   imagePath,
		LabelPath:   labelPath,
		Image:       img,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Predictions: make([]PredictionState, 0, len(preds)),
		Labels:      make([]LabelState, 0, len(labelLines)),
	}
	for _, p := range preds {
		s.Predictions = append(s.Predictions, PredictionState{Box: Box{Line: p.Line}, Confidence: p.Confidence})
	}
	for _, l := range labelLines {
		s.Labels = append(s.Labels, LabelState{Box: Box{Line: l}, Kept: true})
	}
	FlagPredictions(s)
	return s
}

// Counts returns the number of kept labels and accepted predictions.
func (s *ImageSession) Counts() (kept, accepted int) {
	for _, l := range s.Labels {
		if l.Kept {
			kept++
		}
	}
	for _, p := range s.Predictions {
		if p.Accepted {
			accepted++
		}
	}
	return kept, accepted
}
