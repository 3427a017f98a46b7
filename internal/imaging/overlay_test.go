package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

func colorAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestRender_BoxColors(t *testing.T) {
	img := createInMemoryImage(200, 200, color.White)
	p := DefaultPalette()

	boxes := []OverlayBox{
		{Rect: geometry.Rect{X: 20, Y: 20, Width: 40, Height: 40}, Style: StyleLabel},
		{Rect: geometry.Rect{X: 100, Y: 20, Width: 40, Height: 40}, Style: StylePrediction},
		{Rect: geometry.Rect{X: 20, Y: 100, Width: 40, Height: 40}, Style: StyleFlaggedPrediction},
		{Rect: geometry.Rect{X: 100, Y: 100, Width: 40, Height: 40}, Style: StyleFinal},
	}

	result, err := Render(img, boxes, RenderOptions{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Width != 200 || result.Height != 200 {
		t.Errorf("dimensions: got %dx%d, want 200x200", result.Width, result.Height)
	}

	out := decodeResult(t, result)
	tests := []struct {
		name string
		x, y int
		want color.NRGBA
	}{
		{"label left edge", 20, 40, p.Label},
		{"prediction left edge", 100, 40, p.Prediction},
		{"flagged left edge", 20, 120, p.Flagged},
		{"final left edge", 100, 120, p.Final},
		{"untouched interior", 40, 40, color.NRGBA{255, 255, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorAt(out, tt.x, tt.y); got != tt.want {
				t.Errorf("pixel (%d,%d): got %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestRender_DoesNotModifySource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for i := range src.Pix {
		src.Pix[i] = 255
	}

	boxes := []OverlayBox{{Rect: geometry.Rect{X: 0, Y: 0, Width: 50, Height: 50}, Style: StyleLabel, Caption: "cat:0.90"}}
	if _, err := Render(src, boxes, RenderOptions{Brightness: 0.5}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for i, v := range src.Pix {
		if v != 255 {
			t.Fatalf("source pixel byte %d modified: %d", i, v)
		}
	}
}

func TestRender_Scale(t *testing.T) {
	img := createInMemoryImage(120, 80, color.White)

	result, err := Render(img, nil, RenderOptions{Scale: 0.5})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Width != 60 || result.Height != 40 {
		t.Errorf("dimensions: got %dx%d, want 60x40", result.Width, result.Height)
	}
}

func TestRender_ScaleTooLarge(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	if _, err := Render(img, nil, RenderOptions{Scale: 1e9}); err == nil {
		t.Error("expected error for scale 1e9")
	}
}

func TestRender_Caption(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)
	p := DefaultPalette()

	boxes := []OverlayBox{{Rect: geometry.Rect{X: 10, Y: 40, Width: 60, Height: 40}, Style: StyleLabel, Caption: "dog"}}
	result, err := Render(img, boxes, RenderOptions{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// The caption background sits directly above the box.
	out := decodeResult(t, result)
	if got := colorAt(out, 11, 28); got != p.Label && got != p.CaptionFG {
		t.Errorf("caption area pixel: got %v", got)
	}
}

func TestRender_SelectedHandles(t *testing.T) {
	img := createInMemoryImage(100, 100, color.Black)
	p := DefaultPalette()

	boxes := []OverlayBox{{Rect: geometry.Rect{X: 30, Y: 30, Width: 40, Height: 40}, Style: StylePrediction, Selected: true}}
	result, err := Render(img, boxes, RenderOptions{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := decodeResult(t, result)
	// Handle interiors are filled with the handle color.
	for _, pt := range []image.Point{{27, 27}, {72, 72}} {
		if got := colorAt(out, pt.X, pt.Y); got != p.Handle {
			t.Errorf("handle pixel %v: got %v, want %v", pt, got, p.Handle)
		}
	}
}

func TestAdjust(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{200, 200, 200, 255})

	tests := []struct {
		name       string
		brightness float64
		contrast   float64
		check      func(c color.NRGBA) bool
	}{
		{"unchanged when zero", 0, 0, func(c color.NRGBA) bool { return c.R == 200 }},
		{"unchanged when one", 1, 1, func(c color.NRGBA) bool { return c.R == 200 }},
		{"darker", 0.5, 0, func(c color.NRGBA) bool { return c.R < 150 }},
		{"brighter", 1.2, 0, func(c color.NRGBA) bool { return c.R > 200 }},
		{"more contrast", 0, 1.5, func(c color.NRGBA) bool { return c.R > 200 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Adjust(img, tt.brightness, tt.contrast)
			if got := colorAt(out, 5, 5); !tt.check(got) {
				t.Errorf("unexpected pixel %v", got)
			}
		})
	}
}
