package logger

import (
	"github.com/sirupsen/logrus"
)

// Logrus adapts a logrus entry to Logger.
type Logrus struct {
	entry *logrus.Entry
}

var _ Logger = (*Logrus)(nil)

// NewLogrus wraps base. A nil base uses a JSON formatted logger at info level.
func NewLogrus(base *logrus.Logger) *Logrus {
	if base == nil {
		base = logrus.New()
		base.SetFormatter(&logrus.JSONFormatter{})
		base.SetLevel(logrus.InfoLevel)
	}
	return &Logrus{entry: logrus.NewEntry(base)}
}

func (l *Logrus) With(fields ...Field) Logger {
	return &Logrus{entry: l.entry.WithFields(toFields(fields))}
}

func (l *Logrus) Debug(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

func (l *Logrus) Info(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

func (l *Logrus) Warn(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

func (l *Logrus) Error(msg string, fields ...Field) {
	l.entry.WithFields(toFields(fields)).Error(msg)
}

func toFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		if err, ok := f.Value.(error); ok && err != nil {
			out[f.Key] = err.Error()
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}
