package logutils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before InitLogger is called.
var Log = newLogger(logrus.InfoLevel)

func newLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

func InitLogger(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		Log.WithField("level", level).Warn("Invalid log level, defaulting to 'info'")
		parsed = logrus.InfoLevel
	}
	Log.SetLevel(parsed)
	Log.Infof("Log level set to %s", parsed)
}
