package session

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/annotation-corrector/internal/detection"
	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/ironsheep/annotation-corrector/internal/imaging"
	"github.com/ironsheep/annotation-corrector/internal/labels"
	"github.com/ironsheep/annotation-corrector/internal/predictions"
	"github.com/ironsheep/annotation-corrector/internal/review"
)

// progressEvery is how often, in images, the pipeline logs progress.
const progressEvery = 25

// FatalError is a failure that stops the batch before review starts.
type FatalError struct {
	Op   string
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Input is one image with its predictions and labels, ready to be queued.
type Input struct {
	ImagePath   string
	LabelPath   string
	Image       image.Image
	Predictions []detection.Detection
	Labels      []string
	// Discarded holds malformed label lines removed from Labels.
	Discarded []string
}

// BuildQueue returns a review session for every input whose predictions and
// labels differ, in input order.
func BuildQueue(inputs []Input) []*review.ImageSession {
	queue := make([]*review.ImageSession, 0, len(inputs))
	for _, in := range inputs {
		if !review.ShouldQueue(predictionLines(in.Predictions), in.Labels) {
			continue
		}
		s := review.NewImageSession(in.ImagePath, in.LabelPath, in.Image, in.Predictions, in.Labels)
		s.Discarded = in.Discarded
		queue = append(queue, s)
	}
	return queue
}

func predictionLines(dets []detection.Detection) []string {
	lines := make([]string, len(dets))
	for i, d := range dets {
		lines[i] = d.Line
	}
	return lines
}

// BuildConfig describes a directory batch.
type BuildConfig struct {
	ImagesDir    string
	LabelsDir    string
	CorrectedDir string
	// Extensions filters image files; nil uses imaging.DefaultExtensions.
	Extensions []string
	Mode       predictions.Mode
	// Detector is required in live mode.
	Detector detection.Detector
	// Preprocess is applied to every decoded image; nil leaves it unchanged.
	Preprocess func(image.Image) image.Image
}

// Stats counts what the pipeline did with each image.
type Stats struct {
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Queued  int `json:"queued"`
}

// BuildResult is the output of Build.
type BuildResult struct {
	Queue []*review.ImageSession
	Stats Stats
}

// Build prepares the corrected directory, loads every image with its labels
// and predictions, and queues the ones that need review.
//
// Only failing to create the output directories is fatal (*FatalError).
// Per-image problems are logged and the image is counted as failed. The
// context is checked between images.
func Build(ctx context.Context, cfg BuildConfig) (*BuildResult, error) {
	if err := os.MkdirAll(cfg.CorrectedDir, 0o755); err != nil {
		return nil, &FatalError{Op: "create corrected directory", Path: cfg.CorrectedDir, Err: err}
	}

	if cfg.LabelsDir != "" {
		seeded, err := labels.SeedCorrectedDirectory(cfg.LabelsDir, cfg.CorrectedDir)
		if err != nil {
			log.WithError(err).WithField("path", cfg.LabelsDir).Error("failed to seed corrected directory")
		} else {
			log.WithField("count", seeded).Info("seeded corrected labels")
		}
	}

	sideDir := filepath.Join(cfg.CorrectedDir, predictions.DirName)
	if err := os.MkdirAll(sideDir, 0o755); err != nil {
		return nil, &FatalError{Op: "create predictions directory", Path: sideDir, Err: err}
	}

	cache, err := predictions.NewCache(cfg.Mode, sideDir, cfg.Detector)
	if err != nil {
		return nil, err
	}

	paths, err := imaging.ListImages(cfg.ImagesDir, cfg.Extensions)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"images": len(paths),
		"mode":   cfg.Mode,
	}).Info("building review queue")

	result := &BuildResult{Queue: []*review.ImageSession{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, "build cancelled")
		}

		result.Stats.Scanned++
		in, ok := loadInput(ctx, cache, cfg, path)
		if !ok {
			result.Stats.Failed++
		} else if queued := BuildQueue([]Input{in}); len(queued) == 0 {
			result.Stats.Skipped++
		} else {
			result.Queue = append(result.Queue, queued...)
			result.Stats.Queued++
		}

		if result.Stats.Scanned%progressEvery == 0 {
			log.WithFields(log.Fields{
				"scanned": result.Stats.Scanned,
				"total":   len(paths),
				"queued":  result.Stats.Queued,
			}).Info("progress")
		}
	}

	log.WithFields(log.Fields{
		"scanned": result.Stats.Scanned,
		"skipped": result.Stats.Skipped,
		"failed":  result.Stats.Failed,
		"queued":  result.Stats.Queued,
	}).Info("review queue built")

	return result, nil
}

func loadInput(ctx context.Context, cache *predictions.Cache, cfg BuildConfig, path string) (Input, bool) {
	img, err := imaging.Load(path)
	if err != nil {
		log.WithError(err).WithField("image", path).Error("skipping unreadable image")
		return Input{}, false
	}
	if cfg.Preprocess != nil {
		img = cfg.Preprocess(img)
	}

	labelPath := LabelPath(cfg.CorrectedDir, path)
	labelLines, err := labels.Load(labelPath)
	if err != nil {
		// Already logged by the store; review continues with no labels.
		labelLines = []string{}
	}

	dets, err := cache.Load(ctx, path, img)
	if err != nil {
		log.WithError(err).WithField("image", path).Error("failed to obtain predictions")
		return Input{}, false
	}

	valid, discarded := validLines(labelLines, labelPath)
	return Input{
		ImagePath:   path,
		LabelPath:   labelPath,
		Image:       img,
		Predictions: validDetections(dets, path),
		Labels:      valid,
		Discarded:   discarded,
	}, true
}

// LabelPath returns the corrected label file for an image.
func LabelPath(correctedDir, imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return filepath.Join(correctedDir, base+".txt")
}

func validLines(lines []string, path string) (valid, discarded []string) {
	valid = make([]string, 0, len(lines))
	for _, l := range lines {
		if _, err := geometry.ParseLine(l); err != nil {
			log.WithError(err).WithFields(log.Fields{"path": path, "line": l}).Warn("dropping malformed label line")
			discarded = append(discarded, l)
			continue
		}
		valid = append(valid, l)
	}
	return valid, discarded
}

func validDetections(dets []detection.Detection, imagePath string) []detection.Detection {
	out := make([]detection.Detection, 0, len(dets))
	for _, d := range dets {
		if _, err := geometry.ParseLine(d.Line); err != nil {
			log.WithError(err).WithFields(log.Fields{"image": imagePath, "line": d.Line}).Warn("dropping malformed prediction")
			continue
		}
		out = append(out, d)
	}
	return out
}
