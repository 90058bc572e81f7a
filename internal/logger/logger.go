package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Components derive entries from it with
// WithField/WithFields so every line carries its component name.
var Log = logrus.New()

type Entry = logrus.Entry

type Fields = logrus.Fields

// Init configures JSON output on stdout. LOG_LEVEL takes precedence over the
// older DEBUG=true switch.
func Init() {
	setup(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("DEBUG") == "true")
}

func setup(out io.Writer, level string, debug bool) {
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	Log.SetOutput(out)

	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		Log.SetLevel(lvl)
		return
	}
	if debug {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// For returns an entry tagged with the component name.
func For(component string) *Entry {
	return Log.WithField("component", component)
}
