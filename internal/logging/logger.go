// Package logging builds the logrus loggers used across the runner.
//
// Diagnostics go to stderr so that stdout only carries the summary report.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when neither a flag nor LOG_LEVEL is set.
const DefaultLevel = "info"

var root = newLogger(os.Stderr, logrus.InfoLevel)

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return logger
}

// Configure replaces the root logger. An empty level falls back to the
// LOG_LEVEL environment variable and then to DefaultLevel.
func Configure(level string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	root = newLogger(w, lvl)
	return nil
}

// ParseLevel resolves a level name, consulting LOG_LEVEL when name is empty.
func ParseLevel(name string) (logrus.Level, error) {
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name == "" {
		name = DefaultLevel
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(name))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// For returns an entry tagged with the given subsystem.
func For(subsystem string) *logrus.Entry {
	return root.WithField("subsystem", subsystem)
}

// Discard returns an entry that drops everything. Handy in tests.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
