package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"reflect"
	"testing"
)

type detectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

func (f detectorFunc) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

func TestTilePositions(t *testing.T) {
	tests := []struct {
		length, size int
		overlap      float64
		want         []int
	}{
		{100, 640, 0.2, []int{0}},
		{640, 640, 0.2, []int{0}},
		{1000, 640, 0.2, []int{0, 360}},
		{1500, 640, 0.2, []int{0, 512, 860}},
		{300, 100, 0, []int{0, 100, 200}},
	}

	for _, tt := range tests {
		got := tilePositions(tt.length, tt.size, tt.overlap)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tilePositions(%d, %d, %.1f): got %v, want %v", tt.length, tt.size, tt.overlap, got, tt.want)
		}
	}
}

func TestSliced_MapsTileBoxesToImage(t *testing.T) {
	img := createTestImage(1000, 400, color.White)
	fillRect(img, 100, 100, 200, 200, color.Black)

	s := NewSliced(NewShapeDetector(), 640, 0.2, 0.5)
	dets, err := s.Predict(context.Background(), img)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}

	rec := mustParse(t, dets[0].Line)
	if math.Abs(rec.CX-0.1495) > 1e-6 || math.Abs(rec.W-0.101) > 1e-6 {
		t.Errorf("got cx=%.6f w=%.6f, want cx=0.149500 w=0.101000", rec.CX, rec.W)
	}
	if math.Abs(rec.CY-0.37375) > 1e-6 || math.Abs(rec.H-0.2525) > 1e-6 {
		t.Errorf("got cy=%.6f h=%.6f, want cy=0.373750 h=0.252500", rec.CY, rec.H)
	}
}

func TestSliced_MergesOverlapDuplicates(t *testing.T) {
	img := createTestImage(1000, 400, color.White)
	// Inside both tiles (0-640 and 360-1000).
	fillRect(img, 400, 100, 500, 200, color.Black)

	dets, err := NewSliced(NewShapeDetector(), 640, 0.2, 0.5).Predict(context.Background(), img)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(dets) != 1 {
		t.Errorf("got %d detections, want 1 after NMS", len(dets))
	}
}

func TestSliced_TileCount(t *testing.T) {
	calls := 0
	inner := detectorFunc(func(ctx context.Context, img image.Image) ([]Detection, error) {
		calls++
		if b := img.Bounds(); b.Dx() > 640 || b.Dy() > 640 {
			t.Errorf("tile too large: %v", b)
		}
		return nil, nil
	})

	img := image.NewRGBA(image.Rect(0, 0, 1500, 1000))
	if _, err := NewSliced(inner, 640, 0.2, 0.5).Predict(context.Background(), img); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	// 3 columns x 2 rows
	if calls != 6 {
		t.Errorf("inner called %d times, want 6", calls)
	}
}

func TestSliced_InnerError(t *testing.T) {
	boom := errors.New("boom")
	inner := detectorFunc(func(ctx context.Context, img image.Image) ([]Detection, error) {
		return nil, boom
	})

	_, err := NewSliced(inner, 64, 0.2, 0.5).Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestSliced_InvalidConfig(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for _, s := range []*Sliced{
		NewSliced(NewShapeDetector(), 0, 0.2, 0.5),
		NewSliced(NewShapeDetector(), 64, 1.0, 0.5),
	} {
		if _, err := s.Predict(context.Background(), img); err == nil {
			t.Errorf("expected error for %+v", s)
		}
	}
}

func TestSliced_ClassNames(t *testing.T) {
	s := NewSliced(&TextRegionDetector{}, 640, 0.2, 0.5)
	if got := s.ClassNames(); !reflect.DeepEqual(got, []string{"text"}) {
		t.Errorf("ClassNames: got %v", got)
	}
}
