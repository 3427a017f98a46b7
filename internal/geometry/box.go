package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BoxRecord is one parsed YOLO annotation line.
type BoxRecord struct {
	ClassID int     `json:"class_id"`
	CX      float64 `json:"cx"`
	CY      float64 `json:"cy"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
}

// MalformedLineError reports a label line that is not exactly five numeric tokens.
type MalformedLineError struct {
	Line   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed label line %q: %s", e.Line, e.Reason)
}

// ParseLine parses a whitespace-separated "class cx cy w h" line.
//
// Exactly five tokens are accepted. The class must be a non-negative integer
// and the remaining tokens must parse as finite floats with a positive width
// and height. Centres outside [0,1] are kept as written. Prediction side-file lines
// carrying a sixth confidence token are handled by the predictions package.
func ParseLine(line string) (BoxRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return BoxRecord{}, &MalformedLineError{
			Line:   line,
			Reason: fmt.Sprintf("expected 5 fields, got %d", len(fields)),
		}
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil || classID < 0 {
		return BoxRecord{}, &MalformedLineError{Line: line, Reason: "invalid class id " + strconv.Quote(fields[0])}
	}

	var vals [4]float64
	for i, tok := range fields[1:] {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return BoxRecord{}, &MalformedLineError{Line: line, Reason: "invalid number " + strconv.Quote(tok)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BoxRecord{}, &MalformedLineError{Line: line, Reason: "non-finite number " + strconv.Quote(tok)}
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return BoxRecord{}, &MalformedLineError{Line: line, Reason: "width and height must be positive"}
	}

	return BoxRecord{ClassID: classID, CX: vals[0], CY: vals[1], W: vals[2], H: vals[3]}, nil
}

// ToRect converts the normalized record into a pixel rectangle for an image
// of the given size.
func (b BoxRecord) ToRect(imgW, imgH int) Rect {
	w := b.W * float64(imgW)
	h := b.H * float64(imgH)
	return Rect{
		X:      b.CX*float64(imgW) - w/2,
		Y:      b.CY*float64(imgH) - h/2,
		Width:  w,
		Height: h,
	}
}

// String formats the record as a YOLO line with six decimals.
func (b BoxRecord) String() string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", b.ClassID, b.CX, b.CY, b.W, b.H)
}

// ToLine converts a pixel rectangle back into a normalized YOLO line.
func ToLine(classID int, r Rect, imgW, imgH int) string {
	return FromRect(classID, r, imgW, imgH).String()
}

// FromRect normalizes a pixel rectangle into a BoxRecord.
func FromRect(classID int, r Rect, imgW, imgH int) BoxRecord {
	fw, fh := float64(imgW), float64(imgH)
	return BoxRecord{
		ClassID: classID,
		CX:      (r.X + r.Width/2) / fw,
		CY:      (r.Y + r.Height/2) / fh,
		W:       r.Width / fw,
		H:       r.Height / fh,
	}
}
