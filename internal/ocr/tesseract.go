package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"

	"github.com/ironsheep/annotation-corrector/internal/detection"
	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
)

// ClassWord is the single class emitted by WordDetector.
const ClassWord = 0

// Word is one recognised word in pixel coordinates.
type Word struct {
	Text       string
	Confidence float64 // 0.0 to 1.0
	Bounds     image.Rectangle
}

// WordDetector runs Tesseract on each image and reports word boxes.
type WordDetector struct {
	// Language is a Tesseract language code such as "eng".
	Language string
	// MinConfidence drops words below this confidence (0.0 to 1.0).
	MinConfidence float64
}

// NewWordDetector returns an English word detector.
func NewWordDetector() *WordDetector {
	return &WordDetector{Language: "eng", MinConfidence: 0.5}
}

// ClassNames implements detection.ClassNamer.
func (d *WordDetector) ClassNames() []string {
	return []string{"word"}
}

// Predict implements detection.Detector.
func (d *WordDetector) Predict(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words, err := d.Words(img)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	dets := make([]detection.Detection, 0, len(words))
	for _, w := range words {
		if w.Confidence < d.MinConfidence {
			continue
		}
		r := w.Bounds.Sub(b.Min)
		rect := geometry.Rect{
			X:      float64(r.Min.X),
			Y:      float64(r.Min.Y),
			Width:  float64(r.Dx()),
			Height: float64(r.Dy()),
		}
		dets = append(dets, detection.Box{ClassID: ClassWord, Rect: rect, Confidence: w.Confidence}.Detection(b.Dx(), b.Dy()))
	}
	return dets, nil
}

// Words performs word-level OCR on an in-memory image. Empty words are
// skipped.
func (d *WordDetector) Words(img image.Image) ([]Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode image for OCR")
	}

	client := gosseract.NewClient()
	defer client.Close()

	lang := d.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return nil, errors.Wrap(err, "failed to set language")
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, errors.Wrap(err, "failed to set image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, errors.Wrap(err, "OCR failed")
	}

	// Tesseract reports boxes relative to the encoded image, whose origin is
	// the source image's Min point.
	origin := img.Bounds().Min
	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text:       text,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     box.Box.Add(origin),
		})
	}
	return words, nil
}
