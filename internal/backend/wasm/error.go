package wasm

import "errors"

// Error definitions for the wasm package.
var (
	ErrMissingExport = errors.New("wasm model is missing a required export")
	ErrMemoryAccess  = errors.New("wasm memory access out of range")
	ErrClosed        = errors.New("wasm model is closed")
)
