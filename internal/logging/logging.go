// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Setup sends log output to stderr at the given level and, when file is not
// empty, also appends it to that file. An unknown level falls back to info
// with a warning. The returned closer releases the log file; it is a no-op
// when no file is used.
func Setup(level, file string) (io.Closer, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithField("level", level).Warn("unknown log level, using info")
	} else {
		log.SetLevel(lvl)
	}

	if file == "" {
		return nopCloser{}, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nopCloser{}, errors.Wrapf(err, "failed to open log file %s", file)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
