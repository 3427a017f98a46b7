package ocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createImageWithText renders text and scales it up so Tesseract can read it
func createImageWithText(text string, scale int) *image.RGBA {
	w := len(text)*7 + 40
	h := 40

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 20, 25, text, color.Black)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.At(x, y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img
}

func skipIfNoTesseract(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "library") || strings.Contains(msg, "language") {
		t.Skipf("Tesseract not available: %v", err)
	}
}

func TestWordDetector_Predict(t *testing.T) {
	img := createImageWithText("HELLO WORLD", 4)

	det := &WordDetector{Language: "eng", MinConfidence: 0}
	dets, err := det.Predict(context.Background(), img)
	skipIfNoTesseract(t, err)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if len(dets) == 0 {
		t.Fatal("expected at least one word box")
	}
	for _, d := range dets {
		rec, err := geometry.ParseLine(d.Line)
		if err != nil {
			t.Fatalf("unparseable line %q: %v", d.Line, err)
		}
		if rec.ClassID != ClassWord {
			t.Errorf("class: got %d, want %d", rec.ClassID, ClassWord)
		}
		if rec.CX < 0 || rec.CX > 1 || rec.CY < 0 || rec.CY > 1 {
			t.Errorf("word center outside image: %q", d.Line)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			t.Errorf("confidence out of range: %.3f", d.Confidence)
		}
	}
}

func TestWordDetector_Words(t *testing.T) {
	img := createImageWithText("TESTING", 4)

	words, err := NewWordDetector().Words(img)
	skipIfNoTesseract(t, err)
	if err != nil {
		t.Fatalf("Words failed: %v", err)
	}

	for _, w := range words {
		if w.Text == "" {
			t.Error("empty words must be filtered")
		}
		if !w.Bounds.In(img.Bounds()) {
			t.Errorf("word %q bounds %v outside image", w.Text, w.Bounds)
		}
	}
	t.Logf("recognised %d words", len(words))
}

func TestWordDetector_BlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	dets, err := NewWordDetector().Predict(context.Background(), img)
	skipIfNoTesseract(t, err)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("blank image: got %d words, want 0", len(dets))
	}
}

func TestWordDetector_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewWordDetector().Predict(ctx, image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestWordDetector_ClassNames(t *testing.T) {
	if got := NewWordDetector().ClassNames(); len(got) != 1 || got[0] != "word" {
		t.Errorf("ClassNames: got %v", got)
	}
}
