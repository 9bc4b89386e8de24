package manager

import (
	"sync"
	"time"

	"github.com/ekisa-team/stylus/internal/config"
	"github.com/ekisa-team/stylus/internal/module"
	"github.com/ekisa-team/stylus/internal/resource"
)

// Status is the current loading status of a model.
type Status string

const (
	// StatusUnloaded indicates that the model is not loaded.
	StatusUnloaded Status = "unloaded"

	// StatusLoading indicates that the model is being loaded.
	StatusLoading Status = "loading"

	// StatusLoaded indicates that the model is loaded.
	StatusLoaded Status = "loaded"

	// StatusFailed indicates that the last load failed and no handle is
	// available.
	StatusFailed Status = "failed"
)

// Instance is a snapshot of a configured model.
type Instance struct {
	Config   *config.ModelConfig `json:"config"`
	LoadedAt *time.Time          `json:"loaded_at,omitempty"`
	ID       string              `json:"id"`
	Source   string              `json:"source"`
	Status   Status              `json:"status"`
	Error    string              `json:"error,omitempty"`
	LoadID   string              `json:"load_id,omitempty"`
}

// entry is the live state behind an Instance.
type entry struct {
	module   *module.Module[string, string]
	source   resource.Source
	config   config.ModelConfig
	loadedAt *time.Time
	id       string
	status   Status
	err      string
	loadID   string
	mu       sync.RWMutex
}

func newEntry(id string, cfg config.ModelConfig, src resource.Source, mod *module.Module[string, string]) *entry {
	return &entry{
		id:     id,
		config: cfg,
		source: src,
		module: mod,
		status: StatusUnloaded,
	}
}

func (e *entry) startLoad(loadID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status = StatusLoading
	e.loadID = loadID
}

// finishLoad records the outcome of a load. A failed reload of a model that
// still holds its previous handle stays loaded, with the error attached.
func (e *entry) finishLoad(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		now := time.Now()
		e.loadedAt = &now
		e.status = StatusLoaded
		e.err = ""
		return
	}

	e.err = err.Error()
	if e.module.Loaded() {
		e.status = StatusLoaded
	} else {
		e.status = StatusFailed
	}
}

func (e *entry) setUnloaded() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status = StatusUnloaded
	e.loadedAt = nil
	e.err = ""
}

func (e *entry) snapshot() Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg := e.config
	return Instance{
		ID:       e.id,
		Config:   &cfg,
		Source:   e.source.String(),
		Status:   e.status,
		LoadedAt: e.loadedAt,
		Error:    e.err,
		LoadID:   e.loadID,
	}
}
