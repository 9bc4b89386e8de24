// Package backend wires execution backends into model modules.
//
// A backend is registered under a Provider name as a Builder. Given the
// backend parameters of a model, a Builder returns the Factory a Module uses
// to turn a local asset path into a runnable Handle.
package backend

import "github.com/ekisa-team/stylus/internal/module"

// Provider is a string identifier for a backend provider.
type Provider string

const (
	ProviderWASM    Provider = "wasm"
	ProviderCommand Provider = "command"
)

// Handle is a loaded model taking an input reference (such as an image path)
// and producing an output reference.
type Handle = module.Handle[string, string]

// Factory builds a Handle from a local model path.
type Factory = module.Factory[string, string]

// Builder returns a Factory configured with backend-specific parameters.
type Builder func(params map[string]any) (Factory, error)
