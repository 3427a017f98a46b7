package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

// HandleSize is the side length in pixels of a resize handle.
const HandleSize = 10

// BoxStyle selects how an overlay box is drawn.
type BoxStyle int

const (
	StyleLabel BoxStyle = iota
	StyleRejectedLabel
	StylePrediction
	StyleFlaggedPrediction
	StyleFinal
)

// OverlayBox is one rectangle to draw on a rendered image.
type OverlayBox struct {
	Rect     geometry.Rect
	Style    BoxStyle
	Caption  string
	Accepted bool // draws a tick in the top-right corner
	Selected bool // draws resize handles on the top-left and bottom-right corners
}

// RenderOptions controls image adjustment and output size. Brightness and
// Contrast are factors where 1 leaves the image unchanged; zero is treated
// as 1.
type RenderOptions struct {
	Brightness float64
	Contrast   float64
	Scale      float64
	Palette    *Palette
}

// Render draws boxes on a copy of img and returns it as a base64 PNG.
func Render(img image.Image, boxes []OverlayBox, opts RenderOptions) (*Result, error) {
	canvas := Adjust(img, opts.Brightness, opts.Contrast)

	palette := DefaultPalette()
	if opts.Palette != nil {
		palette = *opts.Palette
	}

	for _, box := range boxes {
		drawBox(canvas, box, palette)
	}

	out, err := scaled(canvas, opts.Scale)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

// Adjust returns a copy of img with brightness and contrast factors applied.
// The original image is never modified.
func Adjust(img image.Image, brightness, contrast float64) *image.NRGBA {
	out := imaging.Clone(img)
	if change := factorToChange(brightness); change != 0 {
		out = imaging.Clone(adjust.Brightness(out, change))
	}
	if change := factorToChange(contrast); change != 0 {
		out = imaging.Clone(adjust.Contrast(out, change))
	}
	return out
}

// factorToChange maps a multiplicative factor to bild's [-1, 1] change.
func factorToChange(factor float64) float64 {
	if factor == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, factor-1))
}

func drawBox(img *image.NRGBA, box OverlayBox, p Palette) {
	r := toPixels(box.Rect)

	var c color.NRGBA
	thickness := 2
	switch box.Style {
	case StyleLabel:
		c = p.Label
	case StyleRejectedLabel:
		c = p.Rejected
	case StylePrediction:
		c = p.Prediction
	case StyleFlaggedPrediction:
		c = p.Flagged
	case StyleFinal:
		c = p.Final
		thickness = 1
	}

	drawOutline(img, r, c, thickness)

	if box.Style == StyleRejectedLabel {
		drawLine(img, r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, c)
		drawLine(img, r.Min.X, r.Max.Y-1, r.Max.X-1, r.Min.Y, c)
	}
	if box.Accepted {
		drawTick(img, r.Max.X-14, r.Min.Y+4, c)
	}
	if box.Selected {
		half := HandleSize / 2
		for _, pt := range []image.Point{r.Min, r.Max} {
			handle := image.Rect(pt.X-half, pt.Y-half, pt.X+half, pt.Y+half)
			fillRect(img, handle, p.Handle)
			drawOutline(img, handle, c, 1)
		}
	}
	if box.Caption != "" {
		drawCaption(img, r.Min.X, r.Min.Y, box.Caption, p.CaptionFG, c)
	}
}

func toPixels(r geometry.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.Right())),
		int(math.Round(r.Bottom())),
	)
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

func drawOutline(img *image.NRGBA, r image.Rectangle, c color.Color, thickness int) {
	for t := 0; t < thickness; t++ {
		fillRect(img, image.Rect(r.Min.X, r.Min.Y+t, r.Max.X, r.Min.Y+t+1), c)
		fillRect(img, image.Rect(r.Min.X, r.Max.Y-1-t, r.Max.X, r.Max.Y-t), c)
		fillRect(img, image.Rect(r.Min.X+t, r.Min.Y, r.Min.X+t+1, r.Max.Y), c)
		fillRect(img, image.Rect(r.Max.X-1-t, r.Min.Y, r.Max.X-t, r.Max.Y), c)
	}
}

// drawLine draws a two pixel wide line using Bresenham's algorithm.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		fillRect(img, image.Rect(x0, y0, x0+2, y0+2), c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func drawTick(img *image.NRGBA, x, y int, c color.Color) {
	drawLine(img, x, y+5, x+4, y+9, c)
	drawLine(img, x+4, y+9, x+10, y, c)
}

func drawCaption(img *image.NRGBA, x, y int, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	top := y - face.Height
	if top < 0 {
		top = y
	}
	fillRect(img, image.Rect(x, top, x+width+4, top+face.Height), bg)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x+2, top+face.Ascent),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
