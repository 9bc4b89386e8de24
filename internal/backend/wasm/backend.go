// Package wasm runs WebAssembly style-transfer models with wazero.
//
// A model is a core wasm module exporting:
//
//	memory
//	alloc(size i32) i32
//	generate(ptr i32, len i32) i64   ;; returns ptr<<32 | len of the output
//
// and optionally dealloc(ptr i32, len i32). The input reference is written
// into guest memory and the output is read back as a string. The host frees
// the input buffer after every call; the output buffer belongs to the guest.
package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/mapsafe"
)

// Config holds configuration for model instantiation.
type Config struct {
	// MemoryLimitPages sets the maximum memory of the model in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Builder returns the backend.Builder for wasm models.
func Builder(params map[string]any) (backend.Factory, error) {
	pages := mapsafe.Get(params, "memory_limit_pages", 0)
	if pages < 0 || pages > 65536 {
		return nil, fmt.Errorf("%w: memory_limit_pages must be within [0, 65536], got %d", backend.ErrInvalidParams, pages)
	}

	return NewFactory(Config{MemoryLimitPages: uint32(pages)}), nil
}

// NewFactory returns a factory compiling the wasm file at the given path.
func NewFactory(cfg Config) backend.Factory {
	return func(path string) (backend.Handle, error) {
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("wasm: read model: %w", err)
		}

		h, err := Load(context.Background(), wasmBytes, cfg)
		if err != nil {
			return nil, err
		}

		slog.Debug("Wasm model instantiated", "path", path, "bytes", len(wasmBytes))
		return h, nil
	}
}

// Handle is an instantiated wasm model. Calls are serialized; a wasm
// instance is not safe for concurrent use.
type Handle struct {
	runtime  wazero.Runtime
	mod      api.Module
	alloc    api.Function
	generate api.Function
	dealloc  api.Function
	mu       sync.Mutex
	closed   bool
}

// Load compiles and instantiates wasmBytes in a dedicated runtime.
func Load(ctx context.Context, wasmBytes []byte, cfg Config) (*Handle, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	h, err := instantiate(ctx, rt, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return h, nil
}

func instantiate(ctx context.Context, rt wazero.Runtime, wasmBytes []byte) (*Handle, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("wasm: instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wasm: compile failed: %w", err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("model").
		WithStartFunctions("_initialize"))
	if err != nil {
		return nil, fmt.Errorf("wasm: instantiate failed: %w", err)
	}

	h := &Handle{
		runtime:  rt,
		mod:      mod,
		alloc:    mod.ExportedFunction("alloc"),
		generate: mod.ExportedFunction("generate"),
		dealloc:  mod.ExportedFunction("dealloc"),
	}

	switch {
	case mod.Memory() == nil:
		return nil, fmt.Errorf("%w: memory", ErrMissingExport)
	case h.alloc == nil:
		return nil, fmt.Errorf("%w: alloc", ErrMissingExport)
	case h.generate == nil:
		return nil, fmt.Errorf("%w: generate", ErrMissingExport)
	}

	return h, nil
}

// Generate passes input to the guest and returns its output.
func (h *Handle) Generate(ctx context.Context, input string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", ErrClosed
	}

	in := []byte(input)
	res, err := h.alloc.Call(ctx, uint64(len(in)))
	if err != nil {
		return "", fmt.Errorf("wasm: alloc: %w", err)
	}
	inPtr := uint32(res[0])
	if h.dealloc != nil {
		defer func() {
			if _, err := h.dealloc.Call(ctx, uint64(inPtr), uint64(len(in))); err != nil {
				slog.Warn("Wasm dealloc failed", "error", err)
			}
		}()
	}

	mem := h.mod.Memory()
	if !mem.Write(inPtr, in) {
		return "", fmt.Errorf("%w: input at %d+%d", ErrMemoryAccess, inPtr, len(in))
	}

	res, err = h.generate.Call(ctx, uint64(inPtr), uint64(len(in)))
	if err != nil {
		return "", fmt.Errorf("wasm: generate: %w", err)
	}

	// The output buffer stays owned by the guest, which may reuse it on the
	// next call; it is copied out and never freed by the host.
	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	out, ok := mem.Read(outPtr, outLen)
	if !ok {
		return "", fmt.Errorf("%w: output at %d+%d", ErrMemoryAccess, outPtr, outLen)
	}
	result := string(out)

	return result, nil
}

// Close releases the wazero runtime.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.runtime.Close(context.Background())
}
