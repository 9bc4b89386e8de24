package backend

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps providers to backend builders.
type Registry struct {
	builders map[Provider]Builder
	mu       sync.RWMutex
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[Provider]Builder),
	}
}

// Register adds a builder to the registry.
func (r *Registry) Register(provider Provider, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[provider]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, provider)
	}

	r.builders[provider] = b
	return nil
}

// Get retrieves a builder by provider.
func (r *Registry) Get(provider Provider) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.builders[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, provider)
	}
	return b, nil
}

// Factory returns the factory of provider configured with params.
func (r *Registry) Factory(provider Provider, params map[string]any) (Factory, error) {
	b, err := r.Get(provider)
	if err != nil {
		return nil, err
	}
	return b(params)
}

// Providers returns the registered providers, sorted.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.builders))
	for p := range r.builders {
		providers = append(providers, p)
	}
	slices.Sort(providers)
	return providers
}
