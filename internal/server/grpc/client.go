package grpc

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the stylus.v1.Models service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Forward runs inference with model id.
func (c *Client) Forward(ctx context.Context, id, input string, opts ...grpc.CallOption) (string, error) {
	in, err := structpb.NewStruct(map[string]any{"model_id": id, "input": input})
	if err != nil {
		return "", err
	}

	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, forwardMethod, in, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Load loads model id, calling onProgress for every progress update received.
func (c *Client) Load(ctx context.Context, id string, onProgress func(float64), opts ...grpc.CallOption) error {
	return c.stream(ctx, &ServiceDesc.Streams[0], loadMethod, id, onProgress, opts...)
}

// Resume continues the paused download of model id and loads it, calling
// onProgress for every progress update received.
func (c *Client) Resume(ctx context.Context, id string, onProgress func(float64), opts ...grpc.CallOption) error {
	return c.stream(ctx, &ServiceDesc.Streams[1], resumeMethod, id, onProgress, opts...)
}

func (c *Client) stream(ctx context.Context, desc *grpc.StreamDesc, method, id string, onProgress func(float64), opts ...grpc.CallOption) error {
	cs, err := c.cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return err
	}

	stream := &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.DoubleValue]{ClientStream: cs}
	if err := stream.SendMsg(wrapperspb.String(id)); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		p, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(p.GetValue())
		}
	}
}

// Unload releases the handle of model id.
func (c *Client) Unload(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, unloadMethod, wrapperspb.String(id), new(emptypb.Empty), opts...)
}

// Pause pauses the asset download of model id.
func (c *Client) Pause(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, pauseMethod, wrapperspb.String(id), new(emptypb.Empty), opts...)
}

// Cancel cancels the asset download of model id.
func (c *Client) Cancel(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, cancelMethod, wrapperspb.String(id), new(emptypb.Empty), opts...)
}

// RemoveCached deletes the cached asset of model id.
func (c *Client) RemoveCached(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, removeMethod, wrapperspb.String(id), new(emptypb.Empty), opts...)
}

// ListCached returns the paths of the completed downloads on the server.
func (c *Client) ListCached(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		paths = append(paths, v.GetStringValue())
	}
	return paths, nil
}
