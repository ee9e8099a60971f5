package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Init configures the process-wide logger. In production the output is plain
// JSON so it can be shipped as-is; elsewhere a console writer is used.
func Init(environment string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(environment, "production") {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, keyvals ...any) {
	withFields(log.Debug(), keyvals).Msg(msg)
}

// Info logs an informational message with optional key-value pairs.
func Info(msg string, keyvals ...any) {
	withFields(log.Info(), keyvals).Msg(msg)
}

// Infof logs a formatted informational message.
func Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

// Warn logs a warning with optional key-value pairs.
func Warn(msg string, keyvals ...any) {
	withFields(log.Warn(), keyvals).Msg(msg)
}

// Warnf logs a formatted warning.
func Warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

// Error logs an error with optional key-value pairs. err may be nil.
func Error(msg string, err error, keyvals ...any) {
	withFields(log.Error().Err(err), keyvals).Msg(msg)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}

// Fatal logs an error and terminates the process.
func Fatal(msg string, err error, keyvals ...any) {
	withFields(log.Fatal().Err(err), keyvals).Msg(msg)
}

func withFields(ev *zerolog.Event, keyvals []any) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	return ev
}
