package main

import (
	"io"

	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

// logrusFactory hands out pion loggers that write through one logrus logger,
// tagging every entry with the component scope.
type logrusFactory struct {
	logger *logrus.Logger
}

func newLoggerFactory(w io.Writer, level string) (logging.LoggerFactory, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	})
	return &logrusFactory{logger: logger}, nil
}

func (f *logrusFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logrusLogger{entry: f.logger.WithField("scope", scope)}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Trace(msg string)                          { l.entry.Trace(msg) }
func (l *logrusLogger) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }
func (l *logrusLogger) Debug(msg string)                          { l.entry.Debug(msg) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(msg string)                           { l.entry.Info(msg) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(msg string)                           { l.entry.Warn(msg) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(msg string)                          { l.entry.Error(msg) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
