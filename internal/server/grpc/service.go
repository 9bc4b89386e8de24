// Package grpc exposes the model manager as the stylus.v1.Models gRPC
// service.
//
// The service is declared by hand over well-known protobuf types, so no
// generated code is needed:
//
//	service Models {
//	  rpc Forward(google.protobuf.Struct) returns (google.protobuf.StringValue);
//	  rpc Load(google.protobuf.StringValue) returns (stream google.protobuf.DoubleValue);
//	  rpc Unload(google.protobuf.StringValue) returns (google.protobuf.Empty);
//	  rpc Pause(google.protobuf.StringValue) returns (google.protobuf.Empty);
//	  rpc Resume(google.protobuf.StringValue) returns (stream google.protobuf.DoubleValue);
//	  rpc Cancel(google.protobuf.StringValue) returns (google.protobuf.Empty);
//	  rpc RemoveCached(google.protobuf.StringValue) returns (google.protobuf.Empty);
//	  rpc ListCached(google.protobuf.Empty) returns (google.protobuf.ListValue);
//	}
//
// Forward expects the fields "model_id" and "input".
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "stylus.v1.Models"

	forwardMethod = "/" + ServiceName + "/Forward"
	loadMethod    = "/" + ServiceName + "/Load"
	unloadMethod  = "/" + ServiceName + "/Unload"
	pauseMethod   = "/" + ServiceName + "/Pause"
	resumeMethod  = "/" + ServiceName + "/Resume"
	cancelMethod  = "/" + ServiceName + "/Cancel"
	removeMethod  = "/" + ServiceName + "/RemoveCached"
	listMethod    = "/" + ServiceName + "/ListCached"
)

// ModelsServer is the server API of the stylus.v1.Models service.
type ModelsServer interface {
	Forward(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Load(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.DoubleValue]) error
	Unload(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Pause(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Resume(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.DoubleValue]) error
	Cancel(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	RemoveCached(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ListCached(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// RegisterModelsServer registers srv on s.
func RegisterModelsServer(s grpc.ServiceRegistrar, srv ModelsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the stylus.v1.Models service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ModelsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Forward", Handler: forwardHandler},
		{MethodName: "Unload", Handler: idHandler(unloadMethod, ModelsServer.Unload)},
		{MethodName: "Pause", Handler: idHandler(pauseMethod, ModelsServer.Pause)},
		{MethodName: "Cancel", Handler: idHandler(cancelMethod, ModelsServer.Cancel)},
		{MethodName: "RemoveCached", Handler: idHandler(removeMethod, ModelsServer.RemoveCached)},
		{MethodName: "ListCached", Handler: listCachedHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Load", Handler: progressHandler(ModelsServer.Load), ServerStreams: true},
		{StreamName: "Resume", Handler: progressHandler(ModelsServer.Resume), ServerStreams: true},
	},
	Metadata: "stylus/v1/models.proto",
}

func forwardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelsServer).Forward(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: forwardMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ModelsServer).Forward(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// idHandler serves a unary method taking a model id and returning nothing.
func idHandler(method string, call func(ModelsServer, context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ModelsServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ModelsServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func listCachedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelsServer).ListCached(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ModelsServer).ListCached(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// progressHandler serves a stream taking a model id and sending progress.
func progressHandler(call func(ModelsServer, *wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.DoubleValue]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(wrapperspb.StringValue)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(ModelsServer), in, &grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.DoubleValue]{ServerStream: stream})
	}
}
