package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    BoxRecord
		wantErr bool
	}{
		{"basic", "0 0.5 0.5 0.2 0.2", BoxRecord{0, 0.5, 0.5, 0.2, 0.2}, false},
		{"short floats", "3 .25 .75 .1 .3", BoxRecord{3, 0.25, 0.75, 0.1, 0.3}, false},
		{"extra whitespace", "  1\t0.1  0.2 0.3   0.4 ", BoxRecord{1, 0.1, 0.2, 0.3, 0.4}, false},
		{"out of frame kept", "2 1.2 -0.1 0.5 0.5", BoxRecord{2, 1.2, -0.1, 0.5, 0.5}, false},
		{"too few fields", "0 0.5 0.5 0.2", BoxRecord{}, true},
		{"confidence token rejected", "0 0.5 0.5 0.2 0.2 0.9", BoxRecord{}, true},
		{"float class", "0.0 0.5 0.5 0.2 0.2", BoxRecord{}, true},
		{"negative class", "-1 0.5 0.5 0.2 0.2", BoxRecord{}, true},
		{"bad number", "0 0.5 abc 0.2 0.2", BoxRecord{}, true},
		{"empty", "", BoxRecord{}, true},
		{"nan centre", "0 NaN 0.5 0.2 0.2", BoxRecord{}, true},
		{"infinite height", "0 0.5 0.5 0.2 +Inf", BoxRecord{}, true},
		{"negative infinity", "0 -Inf 0.5 0.2 0.2", BoxRecord{}, true},
		{"zero width", "0 0.5 0.5 0 0.2", BoxRecord{}, true},
		{"negative width", "0 0.5 0.5 -0.2 0.2", BoxRecord{}, true},
		{"zero height", "0 0.5 0.5 0.2 0.0", BoxRecord{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				var malformed *MalformedLineError
				require.Error(t, err)
				assert.True(t, errors.As(err, &malformed), "want MalformedLineError, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.ClassID, got.ClassID)
			assert.InDelta(t, tt.want.CX, got.CX, 1e-12)
			assert.InDelta(t, tt.want.CY, got.CY, 1e-12)
			assert.InDelta(t, tt.want.W, got.W, 1e-12)
			assert.InDelta(t, tt.want.H, got.H, 1e-12)
		})
	}
}

func TestToRect(t *testing.T) {
	rec := BoxRecord{ClassID: 0, CX: 0.5, CY: 0.5, W: 0.2, H: 0.4}
	r := rec.ToRect(100, 50)

	assert.InDelta(t, 40.0, r.X, 1e-9)
	assert.InDelta(t, 15.0, r.Y, 1e-9)
	assert.InDelta(t, 20.0, r.Width, 1e-9)
	assert.InDelta(t, 20.0, r.Height, 1e-9)
}

func TestToLineFormatsSixDecimals(t *testing.T) {
	line := ToLine(7, Rect{X: 40, Y: 15, Width: 20, Height: 20}, 100, 50)
	assert.Equal(t, "7 0.500000 0.500000 0.200000 0.400000", line)
}

func TestRoundTrip(t *testing.T) {
	lines := []string{
		"0 0.5 0.5 0.2 0.2",
		"4 0.123456 0.654321 0.011111 0.999999",
		"1 0.95 0.05 0.3 0.3",
		"12 1.1 -0.2 0.4 0.6",
	}
	sizes := [][2]int{{640, 480}, {1, 1}, {1920, 1080}, {37, 911}}

	for _, line := range lines {
		for _, sz := range sizes {
			orig, err := ParseLine(line)
			require.NoError(t, err)

			out := ToLine(orig.ClassID, orig.ToRect(sz[0], sz[1]), sz[0], sz[1])
			back, err := ParseLine(out)
			require.NoError(t, err, "reparse %q", out)

			assert.Equal(t, orig.ClassID, back.ClassID)
			assert.InDelta(t, orig.CX, back.CX, 1e-6, "%q @ %v", line, sz)
			assert.InDelta(t, orig.CY, back.CY, 1e-6, "%q @ %v", line, sz)
			assert.InDelta(t, orig.W, back.W, 1e-6, "%q @ %v", line, sz)
			assert.InDelta(t, orig.H, back.H, 1e-6, "%q @ %v", line, sz)
		}
	}
}
