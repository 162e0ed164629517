package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// HCLogger adapts an hclog.Logger to the Logger interface.
type HCLogger struct {
	log hclog.Logger
}

// parseLevel maps a string to an hclog level. Defaults to Info on unknown input.
func parseLevel(levelStr string) hclog.Level {
	switch strings.ToLower(levelStr) {
	case "warning":
		return hclog.Warn
	case "fatal":
		return hclog.Error
	}
	if lvl := hclog.LevelFromString(levelStr); lvl != hclog.NoLevel {
		return lvl
	}
	return hclog.Info
}

// NewHCLogger returns a Logger named name that writes to w at or above minLevel.
// A nil writer logs to stderr.
func NewHCLogger(name, minLevel string, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &HCLogger{
		log: hclog.New(&hclog.LoggerOptions{
			Name:   name,
			Level:  parseLevel(minLevel),
			Output: w,
		}),
	}
}

// FromHCLog wraps an existing hclog.Logger.
func FromHCLog(l hclog.Logger) Logger {
	return &HCLogger{log: l}
}

func (l *HCLogger) Debugw(msg string, kvs ...any) { l.log.Debug(msg, kvs...) }
func (l *HCLogger) Infow(msg string, kvs ...any)  { l.log.Info(msg, kvs...) }
func (l *HCLogger) Warnw(msg string, kvs ...any)  { l.log.Warn(msg, kvs...) }
func (l *HCLogger) Errorw(msg string, kvs ...any) { l.log.Error(msg, kvs...) }

// Fatalw logs at error level and exits the process.
func (l *HCLogger) Fatalw(msg string, kvs ...any) {
	l.log.Error(msg, kvs...)
	os.Exit(1)
}

// With adds key-value pairs to the logger's context.
func (l *HCLogger) With(kvs ...any) Logger {
	return &HCLogger{log: l.log.With(kvs...)}
}

// WithComponent returns a logger with a component name added to the context.
func (l *HCLogger) WithComponent(name string) Logger {
	return &HCLogger{log: l.log.With("component", name)}
}

// WithStructureSet returns a logger with a structure set id added to the context.
func (l *HCLogger) WithStructureSet(id string) Logger {
	return &HCLogger{log: l.log.With("structure_set", id)}
}
