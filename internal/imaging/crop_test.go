package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

// createInMemoryImage creates an image filled with a single color.
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with four colored quadrants.
func createPatternImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	midX, midY := width/2, height/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case x < midX && y < midY:
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			case x >= midX && y < midY:
				img.Set(x, y, color.RGBA{0, 255, 0, 255})
			case x < midX:
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			default:
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func decodeResult(t *testing.T, r *Result) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(r.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	return img
}

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := Crop(img, image.Rect(0, 0, 50, 50), 1.0)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	r, g, b, _ := decodeResult(t, result).At(25, 25).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("expected red top-left quadrant, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestCrop_WithScale(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name   string
		region image.Rectangle
		scale  float64
		want   int
	}{
		{"scale up", image.Rect(0, 0, 50, 50), 2.0, 100},
		{"scale down", image.Rect(0, 0, 100, 100), 0.5, 50},
		{"zero scale ignored", image.Rect(0, 0, 40, 40), 0, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(img, tt.region, tt.scale)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			if result.Width != tt.want || result.Height != tt.want {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.want, tt.want)
			}
		})
	}
}

func TestCrop_ScaleLimits(t *testing.T) {
	small := createInMemoryImage(100, 100, color.White)
	large := createInMemoryImage(2100, 2100, color.White)

	tests := []struct {
		name  string
		img   image.Image
		scale float64
	}{
		{"above max scale", small, MaxScale + 0.5},
		{"huge scale", small, 1e9},
		{"too many pixels", large, MaxScale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Crop(tt.img, tt.img.Bounds(), tt.scale)
			if err == nil {
				t.Fatal("expected error for oversized scale")
			}
		})
	}

	result, err := Crop(small, image.Rect(0, 0, 10, 10), MaxScale)
	if err != nil {
		t.Fatalf("Crop at max scale failed: %v", err)
	}
	if result.Width != 80 || result.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 80x80", result.Width, result.Height)
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	tests := []struct {
		name   string
		region image.Rectangle
	}{
		{"negative origin", image.Rect(-10, 0, 50, 50)},
		{"past right edge", image.Rect(0, 0, 150, 50)},
		{"empty", image.Rect(10, 10, 10, 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.region, 1.0); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCropBox(t *testing.T) {
	img := createPatternImage(100, 100)

	tests := []struct {
		name         string
		rect         geometry.Rect
		padding      int
		wantW, wantH int
	}{
		{"inside", geometry.Rect{X: 10, Y: 10, Width: 20, Height: 30}, 0, 20, 30},
		{"padded", geometry.Rect{X: 10, Y: 10, Width: 20, Height: 30}, 5, 30, 40},
		{"clipped at edge", geometry.Rect{X: 90, Y: 90, Width: 20, Height: 20}, 5, 15, 15},
		{"fractional grows outward", geometry.Rect{X: 10.5, Y: 10.5, Width: 9, Height: 9}, 0, 10, 10},
		{"negative padding treated as zero", geometry.Rect{X: 0, Y: 0, Width: 10, Height: 10}, -3, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CropBox(img, tt.rect, tt.padding, 1.0)
			if err != nil {
				t.Fatalf("CropBox failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCropBox_OutsideImage(t *testing.T) {
	img := createInMemoryImage(50, 50, color.White)

	_, err := CropBox(img, geometry.Rect{X: 200, Y: 200, Width: 10, Height: 10}, 2, 1.0)
	if err == nil {
		t.Error("expected error for box outside image")
	}
}
