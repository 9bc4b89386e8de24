package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/manager"
	"github.com/ekisa-team/stylus/internal/module"
)

// Models is the model manager as seen by the gRPC service.
type Models interface {
	Load(ctx context.Context, id string, onProgress module.ProgressFunc) error
	Forward(ctx context.Context, id, input string) (string, error)
	Unload(id string) error
	Pause(id string) error
	Resume(ctx context.Context, id string, onProgress module.ProgressFunc) error
	Cancel(id string) error
	RemoveCached(id string) error
	ListCached() ([]string, error)
}

// Service implements ModelsServer on top of Models.
type Service struct {
	models Models
}

// NewService creates a Service.
func NewService(models Models) *Service {
	return &Service{models: models}
}

// Forward runs inference with the model named by the "model_id" field.
func (s *Service) Forward(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := in.GetFields()
	id := fields["model_id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "model_id is required")
	}

	out, err := s.models.Forward(ctx, id, fields["input"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(out), nil
}

// Load loads a model, streaming acquisition progress. The stream ends when the
// model is ready.
func (s *Service) Load(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.DoubleValue]) error {
	return s.stream(in, stream, s.models.Load)
}

// Resume continues a paused download and loads the model, streaming progress.
func (s *Service) Resume(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.DoubleValue]) error {
	return s.stream(in, stream, s.models.Resume)
}

func (s *Service) stream(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.DoubleValue], run func(context.Context, string, module.ProgressFunc) error) error {
	if in.GetValue() == "" {
		return status.Error(codes.InvalidArgument, "model id is required")
	}

	progress := make(chan float64, 64)
	result := make(chan error, 1)

	go func() {
		result <- run(stream.Context(), in.GetValue(), func(p float64) {
			select {
			case progress <- p:
			default:
			}
		})
	}()

	for {
		select {
		case p := <-progress:
			if err := stream.Send(wrapperspb.Double(p)); err != nil {
				return err
			}

		case err := <-result:
			for drained := false; !drained; {
				select {
				case p := <-progress:
					if sendErr := stream.Send(wrapperspb.Double(p)); sendErr != nil {
						return sendErr
					}
				default:
					drained = true
				}
			}
			if err != nil {
				return toStatus(err)
			}
			return nil
		}
	}
}

// Unload releases the handle of a model.
func (s *Service) Unload(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.models.Unload(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Pause pauses the asset download of a model.
func (s *Service) Pause(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.models.Pause(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Cancel cancels the asset download of a model.
func (s *Service) Cancel(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.models.Cancel(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// RemoveCached deletes the cached asset of a model.
func (s *Service) RemoveCached(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.models.RemoveCached(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ListCached returns the paths of the completed downloads.
func (s *Service) ListCached(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	paths, err := s.models.ListCached()
	if err != nil {
		return nil, toStatus(err)
	}

	values := make([]any, len(paths))
	for i, p := range paths {
		values[i] = p
	}
	out, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC status errors.
func toStatus(err error) error {
	if errors.Is(err, manager.ErrModelNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	if errors.Is(err, manager.ErrDownloadControlUnsupported) {
		return status.Error(codes.Unimplemented, err.Error())
	}

	var e *errcat.Error
	if errors.As(err, &e) {
		switch e.Code {
		case errcat.ModuleNotLoaded:
			return status.Error(codes.FailedPrecondition, err.Error())
		case errcat.DownloadInProgress, errcat.DownloadAlreadyPaused, errcat.DownloadAlreadyActive, errcat.DownloadNotActive:
			return status.Error(codes.FailedPrecondition, err.Error())
		case errcat.DownloadInterrupted:
			return status.Error(codes.Unavailable, err.Error())
		case errcat.InvalidUserInput, errcat.InvalidSource, errcat.MissingURI:
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// Server serves the Models service and the standard health service.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	port   int
}

// NewServer creates a Server on port.
func NewServer(port int, models Models, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(logUnary),
		grpc.ChainStreamInterceptor(logStream),
	}, opts...)

	srv := grpc.NewServer(opts...)
	RegisterModelsServer(srv, NewService(models))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{srv: srv, health: hs, port: port}
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("gRPC server listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc: serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured port and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("grpc: listen: %w", err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting calls and waits for running ones until ctx is
// done, then stops forcibly.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("gRPC call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

func logStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	slog.Debug("gRPC stream", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return err
}
