package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureRejectsInvalidValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	l := New()
	assert.Error(t, l.Configure("loud", "json", "stdout", 0))
	assert.Error(t, l.Configure("info", "xml", "stdout", 0))
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "pulse.log")
	l := New()
	require.NoError(t, l.Configure("debug", "json", path, 0))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	LogDuration(l.WithComponent("test"), "collect", time.Now(), Fields{"rows": 3})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	for _, want := range []string{`"component":"test"`, `"operation":"collect"`, `"rows":3`, `"message":"operation finished"`} {
		assert.True(t, strings.Contains(line, want), "missing %s in %s", want, line)
	}
}

func TestEnvLevelWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	l := New()
	require.NoError(t, l.Configure("debug", "text", "stderr", 0))
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}
