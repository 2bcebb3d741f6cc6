package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	entry *logrus.Entry
}

// levelSource is satisfied by *models.MConfig and anything embedding it.
type levelSource interface {
	GetLogLevel() string
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance
func NewLogger(config interface{}, name string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)

	if src, ok := config.(levelSource); ok {
		base.SetLevel(ParseLevel(src.GetLogLevel()))
	}

	return newLogger(base, name)
}

// -----------------------------------------------------------------------------

func newLogger(base *logrus.Logger, name string) *Logger {
	return &Logger{
		name:  name,
		entry: base.WithField("component", name),
	}
}

// -----------------------------------------------------------------------------

// ParseLevel maps config levels (DEBUG, INFO, WARNING, ERROR, CRITICAL) to logrus.
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARNING", "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "CRITICAL", "FATAL":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger for a sub-component sharing the same output and level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:  name,
		entry: l.entry.WithField("component", name),
	}
}

// -----------------------------------------------------------------------------

// With attaches a field to every subsequent line.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		name:  l.name,
		entry: l.entry.WithField(key, value),
	}
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

func (l *Logger) Warning(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}
