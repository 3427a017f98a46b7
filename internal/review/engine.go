package review

import (
	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/pkg/errors"
)

// ShouldQueue reports whether an image needs review: true unless the set of
// prediction lines equals the set of label lines. Comparison is on exact
// strings; order and duplicates are ignored.
func ShouldQueue(predLines, labelLines []string) bool {
	preds := toSet(predLines)
	labels := toSet(labelLines)
	if len(preds) != len(labels) {
		return true
	}
	for line := range preds {
		if _, ok := labels[line]; !ok {
			return true
		}
	}
	return false
}

func toSet(lines []string) map[string]struct{} {
	set := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		set[l] = struct{}{}
	}
	return set
}

// FlagPredictions recomputes the Disagrees flag of every prediction and
// returns how many are flagged.
//
// Each prediction is matched to the kept label with the highest IoU; on ties
// the first label in order wins. It disagrees when that IoU is zero or the
// classes differ. Unkept labels never match. Lines that do not parse never
// match either, so a malformed prediction is always flagged.
func FlagPredictions(s *ImageSession) int {
	type labelBox struct {
		classID int
		rect    geometry.Rect
	}
	kept := make([]labelBox, 0, len(s.Labels))
	for _, l := range s.Labels {
		if !l.Kept {
			continue
		}
		rec, err := l.Record()
		if err != nil {
			continue
		}
		kept = append(kept, labelBox{classID: rec.ClassID, rect: rec.ToRect(s.Width, s.Height)})
	}

	flagged := 0
	for i := range s.Predictions {
		p := &s.Predictions[i]
		rec, err := p.Record()
		if err != nil {
			p.Disagrees = true
			flagged++
			continue
		}
		rect := rec.ToRect(s.Width, s.Height)

		bestIoU := 0.0
		bestClass := -1
		for _, l := range kept {
			if iou := geometry.IoU(rect, l.rect); iou > bestIoU {
				bestIoU = iou
				bestClass = l.classID
			}
		}

		p.Disagrees = bestIoU == 0 || bestClass != rec.ClassID
		if p.Disagrees {
			flagged++
		}
	}
	return flagged
}

// ToggleAccept flips whether prediction i is included in the final labels.
func ToggleAccept(s *ImageSession, i int) error {
	if i < 0 || i >= len(s.Predictions) {
		return errors.Wrapf(ErrIndexOutOfRange, "prediction %d of %d", i, len(s.Predictions))
	}
	s.Predictions[i].Accepted = !s.Predictions[i].Accepted
	return nil
}

// ToggleKeep flips whether label i is included in the final labels.
func ToggleKeep(s *ImageSession, i int) error {
	if i < 0 || i >= len(s.Labels) {
		return errors.Wrapf(ErrIndexOutOfRange, "label %d of %d", i, len(s.Labels))
	}
	s.Labels[i].Kept = !s.Labels[i].Kept
	return nil
}

// UpdateGeometry replaces the box with rect, keeping its class. The rect is
// stored as given, so boxes may extend past the image edge. Rectangles with
// no area are rejected.
func UpdateGeometry(b *Box, rect geometry.Rect, imgW, imgH int) error {
	if imgW <= 0 || imgH <= 0 {
		return errors.Errorf("invalid image size %dx%d", imgW, imgH)
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return errors.Errorf("rectangle %.1fx%.1f has no area", rect.Width, rect.Height)
	}
	rec, err := b.Record()
	if err != nil {
		return errors.Wrap(err, "cannot resize box")
	}
	b.Line = geometry.ToLine(rec.ClassID, rect, imgW, imgH)
	return nil
}

// CollectFinalLines returns the lines of kept labels followed by accepted
// predictions, each group in its original order. Duplicates are preserved.
func CollectFinalLines(s *ImageSession) []string {
	lines := make([]string, 0, len(s.Labels)+len(s.Predictions))
	for _, l := range s.Labels {
		if l.Kept {
			lines = append(lines, l.Line)
		}
	}
	for _, p := range s.Predictions {
		if p.Accepted {
			lines = append(lines, p.Line)
		}
	}
	return lines
}
