// Package logging configures the process-wide structured logger. Grounded
// on the teacher's logrus usage in internal/database and cmd/helixagent.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus logger with JSON output and a level read from
// LOG_LEVEL (default info). Every engine package takes a *logrus.Entry
// rather than reaching for a global, matching the teacher's constructor
// style (e.g. NewPostgresDB(cfg, logger)).
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
