package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStampsServiceAndLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "")
	Init("copd-test")
	defer Silence()

	var buf bytes.Buffer
	Log.SetOutput(&buf)

	ForPatient("p-1").Info("dropped below level")
	assert.Zero(t, buf.Len())

	ForPatient("p-1").Warn("kept")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "copd-test", entry["service"])
	assert.Equal(t, "p-1", entry["patient_id"])
	assert.Equal(t, "kept", entry["msg"])
}

func TestServiceFieldIsNotOverwritten(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	Init("copd-test")
	defer Silence()

	var buf bytes.Buffer
	Log.SetOutput(&buf)
	WithField("service", "weather").Info("scoped")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "weather", entry["service"])
}

func TestFormatterAndLevelParsing(t *testing.T) {
	assert.IsType(t, &logrus.TextFormatter{}, formatter(" Text "))
	assert.IsType(t, &logrus.JSONFormatter{}, formatter("logfmt"))
	assert.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, parseLevel("loud"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
}
