package grpcbridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a .proto file, registering *Bridge's four RPCs against
// exclusively pre-generated message types.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "taosws.grpcbridge.Bridge",
	HandlerType: (*bridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "QueryDuration", Handler: queryDurationHandler},
		{MethodName: "ConnectedAt", Handler: connectedAtHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Fetch", Handler: fetchHandler, ServerStreams: true},
	},
	Metadata: "wsclient/grpcbridge/bridge.go",
}

// bridgeServer is the interface serviceDesc's handlers dispatch through;
// *Bridge implements it.
type bridgeServer interface {
	Query(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Fetch(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
	QueryDuration(context.Context, *wrapperspb.StringValue) (*durationpb.Duration, error)
	ConnectedAt(context.Context, *emptypb.Empty) (*timestamppb.Timestamp, error)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	b := srv.(*Bridge)
	if interceptor == nil {
		return b.Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taosws.grpcbridge.Bridge/Query"}
	handler := func(ctx context.Context, req any) (any, error) {
		return b.Query(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func queryDurationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	b := srv.(*Bridge)
	if interceptor == nil {
		return b.QueryDuration(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taosws.grpcbridge.Bridge/QueryDuration"}
	handler := func(ctx context.Context, req any) (any, error) {
		return b.QueryDuration(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func connectedAtHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	b := srv.(*Bridge)
	if interceptor == nil {
		return b.ConnectedAt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taosws.grpcbridge.Bridge/ConnectedAt"}
	handler := func(ctx context.Context, req any) (any, error) {
		return b.ConnectedAt(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func fetchHandler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(*Bridge).Fetch(m, &fetchServerStream{stream})
}

// fetchServerStream adapts a raw grpc.ServerStream to the generic
// grpc.ServerStreamingServer[wrapperspb.BytesValue] interface Bridge.Fetch
// expects.
type fetchServerStream struct {
	grpc.ServerStream
}

func (x *fetchServerStream) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}
