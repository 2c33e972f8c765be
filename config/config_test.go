package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadTunables(t *testing.T) {
	cfg := Default()
	cfg.BusRecvTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DispatchPoll = -1
	assert.Error(t, cfg.Validate())
}

func TestResolveStreamsPath_ExplicitWins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(StreamsPathEnv, t.TempDir())

	cfg := Default()
	cfg.StreamsPath = dir

	got, err := cfg.ResolveStreamsPath()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveStreamsPath_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(StreamsPathEnv, dir)

	cfg := Default()
	got, err := cfg.ResolveStreamsPath()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestCheckStreamsPath_CreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	require.NoError(t, CheckStreamsPath(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCheckStreamsPath_RejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.Error(t, CheckStreamsPath(path))
}
