package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/ironsheep/annotation-corrector/internal/history"
	"github.com/ironsheep/annotation-corrector/internal/labels"
	"github.com/ironsheep/annotation-corrector/internal/review"
)

// NoLabelsSelected is returned by Preview when an image has no final lines.
const NoLabelsSelected = "No labels selected"

// ErrIndexOutOfRange is returned when an image index is outside the queue.
var ErrIndexOutOfRange = errors.New("image index out of range")

// Kind selects predictions or labels for box operations.
type Kind string

const (
	KindPrediction Kind = "prediction"
	KindLabel      Kind = "label"
)

// ParseKind validates a box kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPrediction:
		return KindPrediction, nil
	case KindLabel:
		return KindLabel, nil
	default:
		return "", errors.Errorf("unknown box kind %q (want prediction or label)", s)
	}
}

// Recorder receives an entry for every label file written by SaveAll.
type Recorder interface {
	RecordSave(e history.Entry) error
}

// SaveReport summarises a SaveAll call.
type SaveReport struct {
	Written int      `json:"written"`
	Failed  []string `json:"failed"`
	// Discarded counts malformed label lines that were not written back.
	Discarded int `json:"discarded"`
}

// Controller owns the review queue and the current position in it.
type Controller struct {
	queue      []*review.ImageSession
	index      int
	classNames []string
	recorder   Recorder
	write      func(path string, lines []string) error
}

// NewController returns a controller positioned on the first image.
func NewController(queue []*review.ImageSession, classNames []string) *Controller {
	if queue == nil {
		queue = []*review.ImageSession{}
	}
	return &Controller{
		queue:      queue,
		classNames: classNames,
		write:      labels.Write,
	}
}

// SetRecorder attaches a save journal. A nil recorder disables journaling.
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

// Len returns the number of queued images.
func (c *Controller) Len() int { return len(c.queue) }

// Index returns the current position.
func (c *Controller) Index() int { return c.index }

// ClassNames returns the configured class names.
func (c *Controller) ClassNames() []string { return c.classNames }

// ClassName returns the name for a class id, or the id itself when no name
// is known.
func (c *Controller) ClassName(id int) string {
	if id >= 0 && id < len(c.classNames) {
		return c.classNames[id]
	}
	return strconv.Itoa(id)
}

// Session returns the queued image at index.
func (c *Controller) Session(index int) (*review.ImageSession, error) {
	if index < 0 || index >= len(c.queue) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, queue length %d", index, len(c.queue))
	}
	return c.queue[index], nil
}

// Current returns the image at the current position.
func (c *Controller) Current() (*review.ImageSession, error) {
	return c.Session(c.index)
}

// Navigate moves by delta images. A move that would leave the queue is
// ignored. It reports whether the position changed.
func (c *Controller) Navigate(delta int) bool {
	target := c.index + delta
	if target < 0 || target >= len(c.queue) || target == c.index {
		return false
	}
	c.index = target
	return true
}

// Toggle flips the accepted state of a prediction or the kept state of a
// label on the current image and recomputes disagreement flags.
func (c *Controller) Toggle(kind Kind, i int) error {
	s, err := c.Current()
	if err != nil {
		return err
	}

	switch kind {
	case KindPrediction:
		err = review.ToggleAccept(s, i)
	case KindLabel:
		err = review.ToggleKeep(s, i)
	default:
		err = errors.Errorf("unknown box kind %q", kind)
	}
	if err != nil {
		return err
	}

	review.FlagPredictions(s)
	return nil
}

// ToggleAccept flips the accepted state of prediction i on the current image.
func (c *Controller) ToggleAccept(i int) error { return c.Toggle(KindPrediction, i) }

// ToggleKeep flips the kept state of label i on the current image.
func (c *Controller) ToggleKeep(i int) error { return c.Toggle(KindLabel, i) }

// Resize replaces the geometry of a box on the current image and recomputes
// disagreement flags. rect is in pixels.
func (c *Controller) Resize(kind Kind, i int, rect geometry.Rect) error {
	s, err := c.Current()
	if err != nil {
		return err
	}

	var box *review.Box
	switch kind {
	case KindPrediction:
		if i < 0 || i >= len(s.Predictions) {
			return errors.Wrapf(review.ErrIndexOutOfRange, "prediction %d", i)
		}
		box = &s.Predictions[i].Box
	case KindLabel:
		if i < 0 || i >= len(s.Labels) {
			return errors.Wrapf(review.ErrIndexOutOfRange, "label %d", i)
		}
		box = &s.Labels[i].Box
	default:
		return errors.Errorf("unknown box kind %q", kind)
	}

	if err := review.UpdateGeometry(box, rect, s.Width, s.Height); err != nil {
		return err
	}

	review.FlagPredictions(s)
	return nil
}

// SaveAll writes the final lines of every queued image, whatever the
// current position. A failed write is logged and the remaining images are
// still written; files already written keep their new content.
func (c *Controller) SaveAll() SaveReport {
	report := SaveReport{Failed: []string{}}

	for _, s := range c.queue {
		lines := review.CollectFinalLines(s)
		if err := c.write(s.LabelPath, lines); err != nil {
			log.WithError(err).WithField("path", s.LabelPath).Error("failed to save labels")
			report.Failed = append(report.Failed, s.LabelPath)
			continue
		}
		report.Written++
		if n := len(s.Discarded); n > 0 {
			log.WithFields(log.Fields{
				"path":  s.LabelPath,
				"lines": n,
			}).Warn("malformed label lines removed from saved file")
			report.Discarded += n
		}
		c.record(s, len(lines))
	}

	log.WithFields(log.Fields{
		"written":   report.Written,
		"failed":    len(report.Failed),
		"discarded": report.Discarded,
	}).Info("saved labels")

	return report
}

func (c *Controller) record(s *review.ImageSession, lineCount int) {
	if c.recorder == nil {
		return
	}
	kept, accepted := s.Counts()
	err := c.recorder.RecordSave(history.Entry{
		SavedAt:   time.Now(),
		ImagePath: s.ImagePath,
		LabelPath: s.LabelPath,
		Kept:      kept,
		Accepted:  accepted,
		LineCount: lineCount,
	})
	if err != nil {
		log.WithError(err).WithField("path", s.LabelPath).Warn("failed to journal save")
	}
}

// Preview returns the lines that would be saved for the image at index,
// joined by newlines, or NoLabelsSelected when there are none.
func (c *Controller) Preview(index int) (string, error) {
	s, err := c.Session(index)
	if err != nil {
		return "", err
	}

	lines := review.CollectFinalLines(s)
	if len(lines) == 0 {
		return NoLabelsSelected, nil
	}
	return strings.Join(lines, "\n"), nil
}
