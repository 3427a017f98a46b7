package imaging

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Palette holds the colors used to draw each kind of box.
type Palette struct {
	Label      color.NRGBA
	Prediction color.NRGBA
	Flagged    color.NRGBA
	Final      color.NRGBA
	Rejected   color.NRGBA
	Handle     color.NRGBA
	CaptionFG  color.NRGBA
}

// DefaultPalette returns the standard review colors.
func DefaultPalette() Palette {
	return Palette{
		Label:      mustHex("#00C000"),
		Prediction: mustHex("#E00000"),
		Flagged:    mustHex("#FFBF00"),
		Final:      mustHex("#0060FF"),
		Rejected:   mustHex("#808080"),
		Handle:     mustHex("#FFFFFF"),
		CaptionFG:  mustHex("#FFFFFF"),
	}
}

// ParseHexColor parses "#RRGGBB", "#RGB" or the same without the leading
// hash. An optional trailing alpha byte ("#RRGGBBAA") is honored.
func ParseHexColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		return color.NRGBA{}, errors.New("empty color string")
	}

	alpha := uint8(255)
	if len(hex) == 8 {
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, errors.Wrapf(err, "invalid alpha in %q", hex)
		}
		alpha = uint8(a)
		hex = hex[:6]
	}
	if len(hex) != 3 && len(hex) != 6 {
		return color.NRGBA{}, errors.Errorf("invalid hex color length %q", hex)
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "invalid hex color %q", hex)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// Dim blends c toward the given background in Lab space. Amount 0 returns
// c unchanged, 1 returns the background.
func Dim(c, background color.NRGBA, amount float64) color.NRGBA {
	from, _ := colorful.MakeColor(opaque(c))
	to, _ := colorful.MakeColor(opaque(background))
	r, g, b := from.BlendLab(to, amount).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: c.A}
}

func opaque(c color.NRGBA) color.NRGBA {
	c.A = 255
	return c
}

func mustHex(hex string) color.NRGBA {
	c, err := ParseHexColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}
