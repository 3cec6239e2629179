package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Log is usable before Init so packages can log from tests and init code.
var Log = logrus.New()

// Init configures Log from LOG_LEVEL and LOG_FORMAT ("json" or "text") and
// stamps every entry with the service name.
func Init(service string) {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(formatter(os.Getenv("LOG_FORMAT")))
	Log.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	if service != "" {
		Log.AddHook(serviceHook{service: service})
	}
}

func formatter(name string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(name), "text") {
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat}
	}
	return &logrus.JSONFormatter{TimestampFormat: timestampFormat}
}

func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}

// Silence discards output; tests call it to keep runs quiet.
func Silence() {
	Log.SetOutput(io.Discard)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// ForPatient scopes an entry to one patient.
func ForPatient(id string) *logrus.Entry {
	return Log.WithField("patient_id", id)
}
