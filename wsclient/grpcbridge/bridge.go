// Package grpcbridge exposes a wsclient.Client's query/fetch surface as a
// small gRPC service, for callers who would rather multiplex a client over
// a local gRPC sidecar than dial the raw WebSocket protocol directly.
//
// There is no .proto/protoc toolchain available to generate request and
// response message types, so the bridge's RPCs carry only the
// already-generated wrapper messages from
// google.golang.org/protobuf/types/known (wrapperspb, durationpb,
// timestamppb, emptypb) rather than a hand-rolled proto.Message
// implementation — real generated types, just borrowed ones instead of
// purpose-built ones.
package grpcbridge

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/taosdata/taosws-go/wsclient"
)

// Bridge wraps one wsclient.Client behind a gRPC server, the way
// server.Server wraps a broker behind one.
type Bridge struct {
	grpcServer  *grpc.Server
	cl          *wsclient.Client
	connectedAt time.Time
}

// New creates a Bridge backed by an already-connected Client.
func New(cl *wsclient.Client) *Bridge {
	b := &Bridge{cl: cl, connectedAt: stamp()}
	gs := grpc.NewServer()
	gs.RegisterService(&serviceDesc, b)
	b.grpcServer = gs
	return b
}

func stamp() time.Time { return time.Now() }

// Serve starts the gRPC server on the given listener, blocking until it
// stops or errors.
func (b *Bridge) Serve(lis net.Listener) error {
	if err := b.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("grpcbridge: serve: %w", err)
	}
	return nil
}

// Stop immediately stops the server, closing all active connections.
func (b *Bridge) Stop() { b.grpcServer.Stop() }

// GracefulStop gracefully stops the server, waiting for RPCs in flight.
func (b *Bridge) GracefulStop() { b.grpcServer.GracefulStop() }

// Query runs sql to completion and returns every row JSON-encoded,
// one array-of-arrays document, as a BytesValue — the simplest payload
// that needs no generated message type of its own.
func (b *Bridge) Query(ctx context.Context, sql *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	rows, err := collectRows(ctx, b.cl, sql.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpcbridge: query: %v", err)
	}
	data, err := marshalRows(rows)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "grpcbridge: marshal rows: %v", err)
	}
	return wrapperspb.Bytes(data), nil
}

// Fetch runs sql and streams one JSON-encoded block of rows per message,
// instead of buffering the whole result like Query does.
func (b *Bridge) Fetch(sql *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	ctx := stream.Context()
	rs, err := b.cl.Query(ctx, sql.GetValue())
	if err != nil {
		return status.Errorf(codes.Internal, "grpcbridge: fetch: %v", err)
	}
	defer rs.Close()

	for {
		blk, err := rs.NextBlock(ctx)
		if err != nil {
			return status.Errorf(codes.Internal, "grpcbridge: fetch block: %v", err)
		}
		if blk == nil {
			return nil
		}
		rows := make([][]any, blk.NRows())
		for r := range rows {
			rows[r] = blk.Row(r)
		}
		data, err := marshalRows(rows)
		if err != nil {
			return status.Errorf(codes.Internal, "grpcbridge: marshal block: %v", err)
		}
		if err := stream.Send(wrapperspb.Bytes(data)); err != nil {
			return fmt.Errorf("grpcbridge: stream send: %w", err)
		}
	}
}

// QueryDuration runs sql to completion and returns how long it took, as a
// real durationpb.Duration wire message — this is the "timing metadata"
// use of the protobuf wrapper types.
func (b *Bridge) QueryDuration(ctx context.Context, sql *wrapperspb.StringValue) (*durationpb.Duration, error) {
	start := stamp()
	if _, err := collectRows(ctx, b.cl, sql.GetValue()); err != nil {
		return nil, status.Errorf(codes.Internal, "grpcbridge: query: %v", err)
	}
	return durationpb.New(stamp().Sub(start)), nil
}

// ConnectedAt returns the wall-clock time New created the bridge around
// its already-connected Client, as a real timestamppb.Timestamp wire
// message.
func (b *Bridge) ConnectedAt(context.Context, *emptypb.Empty) (*timestamppb.Timestamp, error) {
	return timestamppb.New(b.connectedAt), nil
}
