package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

// MaxScale is the largest resize factor Crop and Render accept.
const MaxScale = 8.0

// MaxOutputPixels bounds the area of any scaled output image.
const MaxOutputPixels = 32 << 20

// Result is an encoded image returned to clients.
type Result struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image and optionally scales it.
// The region must lie within the image bounds.
func Crop(img image.Image, region image.Rectangle, scale float64) (*Result, error) {
	bounds := img.Bounds()

	if !region.In(bounds) {
		return nil, errors.Errorf("crop region %v outside image bounds %v", region, bounds)
	}
	if region.Empty() {
		return nil, errors.New("invalid crop region: empty")
	}

	out, err := scaled(imaging.Crop(img, region), scale)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

// CropBox extracts the area around a box rectangle, grown by padding pixels
// on each side and clipped to the image. Boxes entirely outside the image
// are an error.
func CropBox(img image.Image, r geometry.Rect, padding int, scale float64) (*Result, error) {
	if padding < 0 {
		padding = 0
	}
	bounds := img.Bounds()
	region := image.Rect(
		int(math.Floor(r.X))-padding+bounds.Min.X,
		int(math.Floor(r.Y))-padding+bounds.Min.Y,
		int(math.Ceil(r.Right()))+padding+bounds.Min.X,
		int(math.Ceil(r.Bottom()))+padding+bounds.Min.Y,
	).Intersect(bounds)

	if region.Empty() {
		return nil, errors.Errorf("box %v does not overlap image bounds %v", r, bounds)
	}
	return Crop(img, region, scale)
}

// scaled resizes img by scale. A scale of zero or less leaves img unchanged.
func scaled(img *image.NRGBA, scale float64) (*image.NRGBA, error) {
	if math.IsNaN(scale) || scale > MaxScale {
		return nil, errors.Errorf("scale %g outside (0, %g]", scale, MaxScale)
	}
	if scale == 1.0 || scale <= 0 {
		return img, nil
	}
	newWidth := max(1, int(float64(img.Bounds().Dx())*scale))
	newHeight := max(1, int(float64(img.Bounds().Dy())*scale))
	if int64(newWidth)*int64(newHeight) > MaxOutputPixels {
		return nil, errors.Errorf("scaled image %dx%d exceeds %d pixels", newWidth, newHeight, MaxOutputPixels)
	}
	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), nil
}

func encode(img image.Image) (*Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}

	return &Result{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
