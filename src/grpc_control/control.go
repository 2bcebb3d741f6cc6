package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name. Messages are protobuf
// well-known types, so no generated stubs are needed.
const ServiceName = "marketdash.control.v1.Control"

const (
	methodSelectSymbol  = "/" + ServiceName + "/SelectSymbol"
	methodRestartTicker = "/" + ServiceName + "/RestartTicker"
	methodGetStatus     = "/" + ServiceName + "/GetStatus"
)

// -----------------------------------------------------------------------------
// Server side
// -----------------------------------------------------------------------------

type ControlServer interface {
	SelectSymbol(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	RestartTicker(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the Control service to grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SelectSymbol", Handler: selectSymbolHandler},
		{MethodName: "RestartTicker", Handler: restartTickerHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketdash/control/v1/control.proto",
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

func selectSymbolHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).SelectSymbol(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSelectSymbol}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).SelectSymbol(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func restartTickerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).RestartTicker(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRestartTicker}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).RestartTicker(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// -----------------------------------------------------------------------------
// Client side
// -----------------------------------------------------------------------------

type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) SelectSymbol(ctx context.Context, symbol string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodSelectSymbol, wrapperspb.String(symbol), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *ControlClient) RestartTicker(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodRestartTicker, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *ControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
