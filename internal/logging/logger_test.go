package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lvl)

	lvl, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestParseLevel_FromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, lvl)

	// An explicit level wins over the environment.
	lvl, err = ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, logrus.ErrorLevel, lvl)
}

func TestFor_TagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("info", &buf))
	t.Cleanup(func() { _ = Configure("info", nil) })

	For("driver").Info("started")
	For("driver").Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "subsystem=driver")
	assert.Contains(t, out, "started")
	assert.NotContains(t, out, "hidden")
}
