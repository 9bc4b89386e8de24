// Package module implements the façade that loads a model asset and runs
// inference over it.
//
// A Module goes through two phases. Load acquires the asset through a
// Fetcher, reporting progress, and hands the first local path to a backend
// Factory. Forward delegates to the resulting Handle and is refused with
// ErrModuleNotLoaded until a Load has completed.
//
// Loads are serialized. A Forward that races a Load runs against the handle
// of the last completed load, or fails with ErrModuleNotLoaded when there is
// none; it never sees a handle that is still being built. Replaced handles
// are closed once the last Forward using them returns.
package module

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ekisa-team/stylus/internal/resource"
)

// State is the lifecycle state of a Module.
type State int

const (
	// StateUnloaded means no handle is available.
	StateUnloaded State = iota

	// StateLoading means a Load is in flight.
	StateLoading

	// StateLoaded means a handle is available to Forward.
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// ProgressFunc receives acquisition progress in [0, 1].
type ProgressFunc = resource.ProgressFunc

// Fetcher materializes model assets locally.
type Fetcher interface {
	// Fetch returns the local paths of sources in order. A nil or empty
	// result with a nil error means the acquisition was interrupted.
	Fetch(ctx context.Context, onProgress ProgressFunc, sources ...resource.Source) ([]string, error)
}

// Handle is a ready-to-run model instance inside an execution backend.
type Handle[I, O any] interface {
	// Generate runs inference on input.
	Generate(ctx context.Context, input I) (O, error)

	// Close releases the backend resources held by the handle.
	Close() error
}

// Factory builds a Handle from a local asset path.
type Factory[I, O any] func(path string) (Handle[I, O], error)

// Module gates an execution backend behind a successful asset acquisition.
type Module[I, O any] struct {
	fetcher Fetcher
	factory Factory[I, O]
	current atomic.Pointer[lease[I, O]]
	loadMu  sync.Mutex
	loading atomic.Int32
}

// New creates an unloaded Module.
func New[I, O any](fetcher Fetcher, factory Factory[I, O]) *Module[I, O] {
	return &Module[I, O]{
		fetcher: fetcher,
		factory: factory,
	}
}

// Load acquires source and builds a handle from the first acquired path,
// replacing any previously loaded handle. onProgress may be nil.
//
// Fetch and factory errors are returned unchanged. When the fetcher yields
// no path, Load returns ErrAcquisitionInterrupted. A failed Load leaves the
// Module as it was.
func (m *Module[I, O]) Load(ctx context.Context, source resource.Source, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	m.loading.Add(1)
	defer m.loading.Add(-1)

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	paths, err := m.fetcher.Fetch(ctx, onProgress, source)
	if err != nil {
		return err
	}
	if len(paths) < 1 {
		return ErrAcquisitionInterrupted
	}

	// An empty first path is handed to the backend as is.
	handle, err := m.factory(paths[0])
	if err != nil {
		return err
	}

	if prev := m.current.Swap(newLease(handle)); prev != nil {
		_ = prev.retire()
	}

	return nil
}

// Forward runs inference on input with the loaded handle and returns its
// result verbatim.
func (m *Module[I, O]) Forward(ctx context.Context, input I) (O, error) {
	l := m.acquire()
	if l == nil {
		var zero O
		return zero, ErrModuleNotLoaded
	}
	defer l.release()

	return l.handle.Generate(ctx, input)
}

// State reports the current lifecycle state.
func (m *Module[I, O]) State() State {
	if m.loading.Load() > 0 {
		return StateLoading
	}
	if m.current.Load() != nil {
		return StateLoaded
	}
	return StateUnloaded
}

// Loaded reports whether a handle is available to Forward, regardless of
// loads in flight.
func (m *Module[I, O]) Loaded() bool {
	return m.current.Load() != nil
}

// Unload releases the current handle. Forward calls already running finish
// on it; the handle is closed after the last of them returns, in which case
// its close error is not reported.
func (m *Module[I, O]) Unload() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if prev := m.current.Swap(nil); prev != nil {
		return prev.retire()
	}
	return nil
}

// Close unloads the module.
func (m *Module[I, O]) Close() error {
	return m.Unload()
}

// acquire returns a lease on the current handle, or nil when unloaded.
func (m *Module[I, O]) acquire() *lease[I, O] {
	for {
		l := m.current.Load()
		if l == nil {
			return nil
		}
		if l.tryAcquire() {
			return l
		}
		// Retired between Load and tryAcquire; a newer one is already stored.
	}
}
