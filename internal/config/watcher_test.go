package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, validConfig)

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, "", func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	require.Len(t, w.Snapshot().Models, 2)

	updated := validConfig + "  sketch:\n    backend: wasm\n    source:\n      uri: /opt/sketch.wasm\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Len(t, cfg.Models, 3)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	assert.Len(t, w.Snapshot().Models, 3)
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))
}

func TestWatcher_InvalidReloadKeepsSnapshot(t *testing.T) {
	path := writeConfig(t, validConfig)

	failed := make(chan error, 4)
	w, err := NewWatcher(path, "", func(_ *Config, err error) {
		if err != nil {
			failed <- err
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0o644))

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload error was not reported")
	}

	assert.Len(t, w.Snapshot().Models, 2)
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	_, err := NewWatcher(writeConfig(t, "version: 2\n"), "", nil)
	assert.ErrorContains(t, err, "failed to load initial config")
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(writeConfig(t, validConfig), "", nil)
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
