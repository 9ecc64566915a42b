// Package logging wraps charmbracelet/log with the server's conventions:
// structured key/value fields, a timestamped log file path built with
// strftime, and a narrow Logger interface so the rest of the module
// depends on behaviour, not on a concrete logging library.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Logger is the logging surface every subsystem depends on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	With(keyvals ...interface{}) Logger
}

type charmLogger struct {
	inner *log.Logger
}

// New builds a Logger writing to w at the given level ("debug", "info",
// "warn", "error"). An unrecognised level falls back to "info".
func New(w io.Writer, level string) Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
	})
	l.SetLevel(parseLevel(level))
	return &charmLogger{inner: l}
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func (c *charmLogger) Debugf(format string, args ...interface{}) {
	c.inner.Debug(fmt.Sprintf(format, args...))
}

func (c *charmLogger) Infof(format string, args ...interface{}) {
	c.inner.Info(fmt.Sprintf(format, args...))
}

func (c *charmLogger) Warnf(format string, args ...interface{}) {
	c.inner.Warn(fmt.Sprintf(format, args...))
}

func (c *charmLogger) Errorf(format string, args ...interface{}) {
	c.inner.Error(fmt.Sprintf(format, args...))
}

func (c *charmLogger) With(keyvals ...interface{}) Logger {
	return &charmLogger{inner: c.inner.With(keyvals...)}
}

// LogFilePath renders a strftime pattern (e.g. "awgserver-%Y%m%d-%H%M%S.log")
// against the current time, for callers that want a fresh timestamped log
// file per run.
func LogFilePath(pattern string) (string, error) {
	p, err := strftime.New(pattern)
	if err != nil {
		return "", fmt.Errorf("logging: parse log file pattern %q: %w", pattern, err)
	}
	return p.FormatString(time.Now()), nil
}

// OpenLogFile opens (creating if needed) the log file at path for append.
func OpenLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
