package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServicesConfig(t *testing.T, mode string) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("TOTALS_MODE", mode)
	t.Setenv("MEDIA_DIR", t.TempDir())
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestBuildServicesQueueModeOwnsQueueClient(t *testing.T) {
	cfg := newServicesConfig(t, TotalsModeQueue)

	// Building must not dial Redis; the client connects on first enqueue.
	s := BuildServices(ServiceDeps{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NotNil(t, s.Invoices)
	assert.Len(t, s.closers, 1)
	assert.Nil(t, s.Cache)
	s.Close()
}

func TestBuildServicesInlineModeHasNothingToClose(t *testing.T) {
	cfg := newServicesConfig(t, TotalsModeInline)

	s := BuildServices(ServiceDeps{Config: cfg})
	assert.Empty(t, s.closers)
	assert.NotNil(t, s.Renderer)
	assert.NotNil(t, s.Bundler)
	s.Close()
}
