package storage

import (
	"strings"

	"github.com/benhaq/sui-nautilus/pkg/logger"
)

// quietBadgerLogger routes badger's internal logging through the application
// logger, demoting its chatty info output to debug.
type quietBadgerLogger struct{}

func newQuietBadgerLogger() *quietBadgerLogger {
	return &quietBadgerLogger{}
}

func (l *quietBadgerLogger) Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func (l *quietBadgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func (l *quietBadgerLogger) Infof(format string, args ...interface{}) {
	logger.Debugf(strings.TrimSpace(format), args...)
}

func (l *quietBadgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debugf(strings.TrimSpace(format), args...)
}
