// Package labels reads, seeds and writes YOLO label files.
package labels

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Load returns the non-empty, trimmed lines of a label file in file order.
// A missing file yields an empty slice and no error. Read failures are logged
// and also yield an empty slice; the error is returned for callers that want
// to count it.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("label file missing")
			return []string{}, nil
		}
		err = errors.Wrapf(err, "failed to open label file %s", path)
		log.WithError(err).Error("failed to read labels")
		return []string{}, err
	}
	defer f.Close()

	lines, err := readLines(f, path)
	if err != nil {
		log.WithError(err).Error("failed to read labels")
	}
	return lines, err
}

func readLines(r io.Reader, path string) ([]string, error) {
	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return []string{}, errors.Wrapf(err, "failed to read label file %s", path)
	}
	return lines, nil
}

// SeedCorrectedDirectory copies every *.txt file from labelsDir into
// correctedDir unless a file with the same name already exists there.
// Existing corrected files are never overwritten. Per-file copy failures are
// logged and skipped; the returned count is the number of files copied.
//
// correctedDir must already exist.
func SeedCorrectedDirectory(labelsDir, correctedDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(labelsDir, "*.txt"))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list labels in %s", labelsDir)
	}

	copied := 0
	for _, src := range matches {
		dst := filepath.Join(correctedDir, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(src, dst); err != nil {
			log.WithError(err).WithFields(log.Fields{"src": src, "dst": dst}).Error("failed to seed label file")
			continue
		}
		copied++
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer in.Close()

	// O_EXCL keeps a file that appeared after the Stat check intact.
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, "create destination")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Wrap(err, "copy")
	}
	return errors.Wrap(out.Close(), "close destination")
}

// Write replaces path with one line per entry, each followed by a newline.
// Parent directories are created as needed. The content is written to a
// temporary file in the same directory and renamed into place, so a failed
// write leaves the previous file untouched. An empty slice produces an empty
// file.
func Write(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			cleanup()
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to set mode on %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}
