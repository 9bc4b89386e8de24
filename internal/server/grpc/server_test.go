package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/manager"
	"github.com/ekisa-team/stylus/internal/module"
)

// --- Mock types ---

type MockModels struct {
	mock.Mock
}

func (m *MockModels) Load(ctx context.Context, id string, onProgress module.ProgressFunc) error {
	args := m.Called(ctx, id)
	if steps, ok := args.Get(1).([]float64); ok {
		for _, p := range steps {
			onProgress(p)
		}
	}
	return args.Error(0)
}

func (m *MockModels) Forward(ctx context.Context, id, input string) (string, error) {
	args := m.Called(ctx, id, input)
	return args.String(0), args.Error(1)
}

func (m *MockModels) Unload(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockModels) Pause(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockModels) Resume(ctx context.Context, id string, onProgress module.ProgressFunc) error {
	args := m.Called(ctx, id)
	if steps, ok := args.Get(1).([]float64); ok {
		for _, p := range steps {
			onProgress(p)
		}
	}
	return args.Error(0)
}

func (m *MockModels) Cancel(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockModels) RemoveCached(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockModels) ListCached() ([]string, error) {
	args := m.Called()
	paths, _ := args.Get(0).([]string)
	return paths, args.Error(1)
}

func startServer(t *testing.T, models Models) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(0, models)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return conn
}

// --- Tests ---

func TestService_Forward(t *testing.T) {
	models := new(MockModels)
	models.On("Forward", mock.Anything, "candy", "/tmp/in.png").Return("/tmp/out.png", nil)

	client := NewClient(startServer(t, models))

	out, err := client.Forward(context.Background(), "candy", "/tmp/in.png")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.png", out)
}

func TestService_ForwardStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{err: fmt.Errorf("%w: ghost", manager.ErrModelNotFound), code: codes.NotFound},
		{err: module.ErrModuleNotLoaded, code: codes.FailedPrecondition},
		{err: errcat.New(errcat.DownloadInProgress), code: codes.FailedPrecondition},
		{err: errcat.New(errcat.InvalidUserInput), code: codes.InvalidArgument},
		{err: errors.New("boom"), code: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			models := new(MockModels)
			models.On("Forward", mock.Anything, "candy", "x").Return("", tt.err)

			_, err := NewClient(startServer(t, models)).Forward(context.Background(), "candy", "x")
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestService_ForwardRequiresModelID(t *testing.T) {
	models := new(MockModels)

	_, err := NewClient(startServer(t, models)).Forward(context.Background(), "", "x")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	models.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_LoadStreamsProgress(t *testing.T) {
	models := new(MockModels)
	models.On("Load", mock.Anything, "candy").Return(nil, []float64{0.5, 1})

	var got []float64
	err := NewClient(startServer(t, models)).Load(context.Background(), "candy", func(p float64) { got = append(got, p) })
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1}, got)
}

func TestService_LoadInterrupted(t *testing.T) {
	models := new(MockModels)
	models.On("Load", mock.Anything, "candy").Return(module.ErrAcquisitionInterrupted, nil)

	err := NewClient(startServer(t, models)).Load(context.Background(), "candy", nil)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "Download interrupted.")
}

func TestService_Unload(t *testing.T) {
	models := new(MockModels)
	models.On("Unload", "candy").Return(nil)
	models.On("Unload", "ghost").Return(fmt.Errorf("%w: ghost", manager.ErrModelNotFound))

	client := NewClient(startServer(t, models))

	assert.NoError(t, client.Unload(context.Background(), "candy"))
	assert.Equal(t, codes.NotFound, status.Code(client.Unload(context.Background(), "ghost")))
}

func TestServer_Health(t *testing.T) {
	conn := startServer(t, new(MockModels))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestService_DownloadControl(t *testing.T) {
	models := new(MockModels)
	models.On("Pause", "candy").Return(nil).Once()
	models.On("Pause", "candy").Return(errcat.New(errcat.DownloadAlreadyPaused)).Once()
	models.On("Cancel", "candy").Return(nil).Once()
	models.On("RemoveCached", "candy").Return(errcat.New(errcat.DownloadInProgress)).Once()
	models.On("RemoveCached", "ghost").Return(fmt.Errorf("%w: ghost", manager.ErrModelNotFound)).Once()

	client := NewClient(startServer(t, models))
	ctx := context.Background()

	assert.NoError(t, client.Pause(ctx, "candy"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(client.Pause(ctx, "candy")))
	assert.NoError(t, client.Cancel(ctx, "candy"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(client.RemoveCached(ctx, "candy")))
	assert.Equal(t, codes.NotFound, status.Code(client.RemoveCached(ctx, "ghost")))
	models.AssertExpectations(t)
}

func TestService_ResumeStreamsProgress(t *testing.T) {
	models := new(MockModels)
	models.On("Resume", mock.Anything, "candy").Return(nil, []float64{0.5, 1}).Once()
	models.On("Resume", mock.Anything, "candy").Return(errcat.New(errcat.DownloadNotActive), nil).Once()

	client := NewClient(startServer(t, models))

	var got []float64
	require.NoError(t, client.Resume(context.Background(), "candy", func(p float64) { got = append(got, p) }))
	assert.Equal(t, []float64{0.5, 1}, got)

	err := client.Resume(context.Background(), "candy", nil)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestService_ListCached(t *testing.T) {
	models := new(MockModels)
	models.On("ListCached").Return([]string{"/cache/a", "/cache/b"}, nil).Once()
	models.On("ListCached").Return(nil, manager.ErrDownloadControlUnsupported).Once()

	client := NewClient(startServer(t, models))

	paths, err := client.ListCached(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/cache/a", "/cache/b"}, paths)

	_, err = client.ListCached(context.Background())
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
