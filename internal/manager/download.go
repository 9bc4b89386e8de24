package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekisa-team/stylus/internal/module"
	"github.com/ekisa-team/stylus/internal/resource"
)

// DownloadController controls the remote downloads behind model loads. The
// resource.Fetcher implements it.
type DownloadController interface {
	Pause(src resource.Source) error
	Resume(ctx context.Context, onProgress resource.ProgressFunc, src resource.Source) ([]string, error)
	Cancel(src resource.Source) error
	RemoveCached(src resource.Source) error
	ListCached() ([]string, error)
}

func (m *Manager) controller() (DownloadController, error) {
	ctrl, ok := m.fetcher.(DownloadController)
	if !ok {
		return nil, ErrDownloadControlUnsupported
	}
	return ctrl, nil
}

func (m *Manager) download(id string) (*entry, DownloadController, error) {
	ctrl, err := m.controller()
	if err != nil {
		return nil, nil, err
	}
	e, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	return e, ctrl, nil
}

// Pause pauses the asset download of model id. The Load waiting on it ends
// with an interrupted error.
func (m *Manager) Pause(id string) error {
	e, ctrl, err := m.download(id)
	if err != nil {
		return err
	}
	if err := ctrl.Pause(e.source); err != nil {
		return fmt.Errorf("failed to pause download of model %s: %w", id, err)
	}
	slog.Info("Model download paused", "model_id", id)
	return nil
}

// Resume continues the paused download of model id and loads the model once
// the asset is complete. onProgress may be nil.
func (m *Manager) Resume(ctx context.Context, id string, onProgress module.ProgressFunc) error {
	e, ctrl, err := m.download(id)
	if err != nil {
		return err
	}

	slog.Info("Resuming model download", "model_id", id)
	paths, err := ctrl.Resume(ctx, onProgress, e.source)
	if err != nil {
		return fmt.Errorf("failed to resume download of model %s: %w", id, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("failed to resume download of model %s: %w", id, module.ErrAcquisitionInterrupted)
	}

	// The asset is cached now, so the load only builds the handle.
	return m.Load(ctx, id, nil)
}

// Cancel stops the asset download of model id, active or paused, and
// discards what was downloaded.
func (m *Manager) Cancel(id string) error {
	e, ctrl, err := m.download(id)
	if err != nil {
		return err
	}
	if err := ctrl.Cancel(e.source); err != nil {
		return fmt.Errorf("failed to cancel download of model %s: %w", id, err)
	}
	slog.Info("Model download cancelled", "model_id", id)
	return nil
}

// RemoveCached deletes the cached asset of model id. A loaded handle is not
// affected.
func (m *Manager) RemoveCached(id string) error {
	e, ctrl, err := m.download(id)
	if err != nil {
		return err
	}
	if err := ctrl.RemoveCached(e.source); err != nil {
		return fmt.Errorf("failed to remove cached asset of model %s: %w", id, err)
	}
	slog.Info("Cached model asset removed", "model_id", id)
	return nil
}

// ListCached returns the paths of every completed download in the cache.
func (m *Manager) ListCached() ([]string, error) {
	ctrl, err := m.controller()
	if err != nil {
		return nil, err
	}
	return ctrl.ListCached()
}
