// Package predictions obtains model predictions for an image, either by
// running a detector (live) or by reading a previously written side file
// (replay).
//
// Side files live in <corrected>/predicted_labels/<basename>.txt and hold one
// "class cx cy w h conf" line per prediction, confidence with six decimals.
package predictions

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/annotation-corrector/internal/detection"
	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/ironsheep/annotation-corrector/internal/labels"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DirName is the side-file directory inside the corrected directory.
const DirName = "predicted_labels"

// Mode selects where predictions come from.
type Mode int

const (
	// ModeLive runs the detector and refreshes the side file.
	ModeLive Mode = iota
	// ModeReplay reads the side file and never runs a detector.
	ModeReplay
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeReplay:
		return "replay"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Cache resolves predictions for images in one batch.
type Cache struct {
	mode     Mode
	dir      string
	detector detection.Detector
}

// NewCache returns a cache storing side files in dir. Live mode requires a
// detector; replay mode ignores it.
func NewCache(mode Mode, dir string, detector detection.Detector) (*Cache, error) {
	if mode == ModeLive && detector == nil {
		return nil, errors.New("live prediction mode requires a detector")
	}
	return &Cache{mode: mode, dir: dir, detector: detector}, nil
}

// Mode returns the cache mode.
func (c *Cache) Mode() Mode { return c.mode }

// SidePath returns the side-file path for an image.
func (c *Cache) SidePath(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return filepath.Join(c.dir, base+".txt")
}

// Load returns predictions for the image at imagePath.
//
// In replay mode the side file is read; a missing file yields no predictions.
// In live mode img is passed to the detector and the side file is rewritten.
// A side-file write failure is logged and the fresh predictions are still
// returned. Detector failures are returned to the caller.
func (c *Cache) Load(ctx context.Context, imagePath string, img image.Image) ([]detection.Detection, error) {
	side := c.SidePath(imagePath)

	if c.mode == ModeReplay {
		return ReadSideFile(side)
	}

	dets, err := c.detector.Predict(ctx, img)
	if err != nil {
		return nil, errors.Wrapf(err, "prediction failed for %s", imagePath)
	}
	if dets == nil {
		dets = []detection.Detection{}
	}

	if err := WriteSideFile(side, dets); err != nil {
		log.WithError(err).WithField("path", side).Error("failed to write prediction side file")
	}
	return dets, nil
}

// ParseSideLine parses one side-file line. Six or more tokens carry a
// confidence in the sixth; the box is the first five tokens joined by single
// spaces. Five tokens mean confidence 0. The box must be a valid label line.
func ParseSideLine(line string) (detection.Detection, error) {
	fields := strings.Fields(line)

	var conf float64
	if len(fields) >= 6 {
		v, err := strconv.ParseFloat(fields[5], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return detection.Detection{}, &geometry.MalformedLineError{
				Line:   line,
				Reason: "invalid confidence " + strconv.Quote(fields[5]),
			}
		}
		conf = v
		fields = fields[:5]
	}

	box := strings.Join(fields, " ")
	if _, err := geometry.ParseLine(box); err != nil {
		return detection.Detection{}, err
	}
	return detection.Detection{Line: box, Confidence: conf}, nil
}

// FormatSideLine renders a prediction as "<line> <conf>" with six decimals.
func FormatSideLine(d detection.Detection) string {
	return fmt.Sprintf("%s %.6f", d.Line, d.Confidence)
}

// ReadSideFile reads a side file. A missing file yields an empty slice.
// Malformed lines are logged and skipped.
func ReadSideFile(path string) ([]detection.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("prediction side file missing")
			return []detection.Detection{}, nil
		}
		return []detection.Detection{}, errors.Wrapf(err, "failed to open prediction file %s", path)
	}
	defer f.Close()

	dets := []detection.Detection{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := ParseSideLine(line)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping malformed prediction line")
			continue
		}
		dets = append(dets, d)
	}
	if err := scanner.Err(); err != nil {
		return []detection.Detection{}, errors.Wrapf(err, "failed to read prediction file %s", path)
	}
	return dets, nil
}

// WriteSideFile atomically replaces path with the formatted predictions.
func WriteSideFile(path string, dets []detection.Detection) error {
	lines := make([]string, 0, len(dets))
	for _, d := range dets {
		lines = append(lines, FormatSideLine(d))
	}
	return labels.Write(path, lines)
}
