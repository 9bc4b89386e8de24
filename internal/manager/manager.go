// Package manager owns one Module per configured model and keeps the set in
// sync with the configuration.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/config"
	"github.com/ekisa-team/stylus/internal/metrics"
	"github.com/ekisa-team/stylus/internal/module"
)

const defaultParallelLoads = 2

// Manager orchestrates the lifecycle of the configured models.
type Manager struct {
	fetcher  module.Fetcher
	backends *backend.Registry
	metrics  *metrics.Metrics
	registry *registry
	parallel int
	configMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records loads and forwards on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithParallelLoads sets how many models LoadModelsFromConfig loads at once.
func WithParallelLoads(n int) Option {
	return func(mgr *Manager) {
		if n > 0 {
			mgr.parallel = n
		}
	}
}

// NewManager creates a Manager acquiring assets with fetcher and building
// handles with the backends in backends.
func NewManager(fetcher module.Fetcher, backends *backend.Registry, opts ...Option) *Manager {
	m := &Manager{
		fetcher:  fetcher,
		backends: backends,
		registry: newRegistry(),
		parallel: defaultParallelLoads,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadModelsFromConfig reconciles the registry with cfg. New and changed
// models are (re)loaded, unchanged loaded models are left alone and models no
// longer configured are unloaded. Errors of individual models are joined.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	var (
		errs    []error
		pending []string
	)

	for _, id := range slices.Sorted(maps.Keys(cfg.Models)) {
		modelConfig := cfg.Models[id]

		existing, ok := m.registry.get(id)
		if ok && reflect.DeepEqual(existing.config, modelConfig) && existing.snapshot().Status != StatusFailed {
			continue
		}

		src, err := modelConfig.GetSource()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get model source for %s: %w", id, err))
			continue
		}

		var e *entry
		if ok && sameBackend(existing.config, modelConfig) {
			// Same backend: reuse the module so a failed reload keeps the
			// current handle.
			e = newEntry(id, modelConfig, src, existing.module)
			prev := existing.snapshot()
			e.status, e.loadedAt = prev.Status, prev.LoadedAt
			m.registry.set(e)
		} else {
			factory, err := m.backends.Factory(modelConfig.Provider(), modelConfig.Params)
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to get backend for %s: %w", id, err))
				continue
			}

			e = newEntry(id, modelConfig, src, module.New(m.fetcher, factory))
			m.registry.set(e)
			if ok {
				if err := existing.module.Close(); err != nil {
					slog.Warn("Failed to close replaced model", "model_id", id, "error", err)
				}
			}
		}

		pending = append(pending, id)
		slog.Info("Model registered", "model_id", id, "backend", modelConfig.Backend, "source", src.String())
	}

	for _, e := range m.registry.list() {
		if _, ok := cfg.Models[e.id]; ok {
			continue
		}
		m.registry.delete(e.id)
		if err := e.module.Close(); err != nil {
			slog.Warn("Failed to close removed model", "model_id", e.id, "error", err)
		}
		slog.Info("Model removed from registry", "model_id", e.id)
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(m.parallel)
	for _, id := range pending {
		g.Go(func() error {
			if err := m.Load(ctx, id, nil); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.metrics.SetLoaded(m.loadedCount())
	return errors.Join(errs...)
}

func sameBackend(a, b config.ModelConfig) bool {
	return a.Backend == b.Backend && reflect.DeepEqual(a.Params, b.Params)
}

// Load acquires the asset of model id and builds its handle, replacing the
// current one. onProgress may be nil.
func (m *Manager) Load(ctx context.Context, id string, onProgress module.ProgressFunc) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	loadID := uuid.NewString()
	log := slog.With("model_id", id, "load_id", loadID)

	e.startLoad(loadID)
	log.Info("Loading model", "source", e.source.String())

	start := time.Now()
	err = e.module.Load(ctx, e.source, onProgress)
	e.finishLoad(err)

	m.metrics.ObserveLoad(id, err)
	m.metrics.SetLoaded(m.loadedCount())

	if err != nil {
		if errors.Is(err, module.ErrAcquisitionInterrupted) {
			log.Warn("Model load interrupted")
		} else {
			log.Error("Failed to load model", "error", err)
		}
		return fmt.Errorf("failed to load model %s: %w", id, err)
	}

	log.Info("Model loaded successfully", "duration", time.Since(start))
	return nil
}

// Forward runs inference with model id.
func (m *Manager) Forward(ctx context.Context, id, input string) (string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := e.module.Forward(ctx, input)
	m.metrics.ObserveForward(id, err, time.Since(start))

	if err != nil {
		slog.Debug("Forward failed", "model_id", id, "error", err)
	}
	return out, err
}

// Unload releases the handle of model id. The model stays registered.
func (m *Manager) Unload(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	err = e.module.Unload()
	e.setUnloaded()
	m.metrics.SetLoaded(m.loadedCount())

	if err != nil {
		return fmt.Errorf("failed to unload model %s: %w", id, err)
	}

	slog.Info("Model unloaded successfully", "model_id", id)
	return nil
}

// Get returns a snapshot of model id.
func (m *Manager) Get(id string) (Instance, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Instance{}, err
	}
	return e.snapshot(), nil
}

// List returns snapshots of every registered model sorted by id.
func (m *Manager) List() []Instance {
	entries := m.registry.list()

	instances := make([]Instance, 0, len(entries))
	for _, e := range entries {
		instances = append(instances, e.snapshot())
	}
	return instances
}

// Close unloads and forgets every model.
func (m *Manager) Close() error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	var errs []error
	for _, e := range m.registry.list() {
		m.registry.delete(e.id)
		if err := e.module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("model %s: %w", e.id, err))
		}
	}

	m.metrics.SetLoaded(0)
	return errors.Join(errs...)
}

func (m *Manager) lookup(id string) (*entry, error) {
	e, ok := m.registry.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return e, nil
}

func (m *Manager) loadedCount() int {
	n := 0
	for _, e := range m.registry.list() {
		if e.module.Loaded() {
			n++
		}
	}
	return n
}
