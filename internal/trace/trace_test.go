package trace

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabledReadsEnvVar(t *testing.T) {
	t.Setenv(envVar, "")
	assert.False(t, Enabled())

	t.Setenv(envVar, "0")
	assert.False(t, Enabled())

	t.Setenv(envVar, "1")
	assert.True(t, Enabled())
}

func TestStageIsSilentWhenDisabled(t *testing.T) {
	t.Setenv(envVar, "")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Stage(logger, "route", "worker", 2)
	assert.Empty(t, buf.String())
}

func TestStageLogsWhenEnabled(t *testing.T) {
	t.Setenv(envVar, "1")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Stage(logger, "route", "worker", 2)

	require.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), "trace: route")
}
