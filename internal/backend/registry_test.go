package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock types ---

type MockHandle struct {
	mock.Mock
}

func (m *MockHandle) Generate(ctx context.Context, input string) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *MockHandle) Close() error {
	args := m.Called()
	return args.Error(0)
}

func builderFor(h Handle) Builder {
	return func(params map[string]any) (Factory, error) {
		return func(path string) (Handle, error) { return h, nil }, nil
	}
}

// --- Tests ---

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	h := new(MockHandle)

	require.NoError(t, reg.Register(ProviderWASM, builderFor(h)))

	factory, err := reg.Factory(ProviderWASM, nil)
	require.NoError(t, err)
	got, err := factory("/models/candy.wasm")
	require.NoError(t, err)
	assert.Equal(t, h, got)

	// Ensure a missing backend returns ErrNotFound
	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RegisterTwice(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(ProviderCommand, builderFor(new(MockHandle))))

	err := reg.Register(ProviderCommand, builderFor(new(MockHandle)))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_BuilderErrorPropagation(t *testing.T) {
	reg := NewRegistry()
	buildErr := errors.New("binary missing")
	require.NoError(t, reg.Register(ProviderCommand, func(map[string]any) (Factory, error) {
		return nil, buildErr
	}))

	_, err := reg.Factory(ProviderCommand, map[string]any{"binary": "/nope"})
	assert.ErrorIs(t, err, buildErr)
}

func TestRegistry_Providers(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(ProviderWASM, builderFor(new(MockHandle))))
	require.NoError(t, reg.Register(ProviderCommand, builderFor(new(MockHandle))))

	assert.Equal(t, []Provider{ProviderCommand, ProviderWASM}, reg.Providers())
}
