// Package core is the client of the remote cluster scheduler.
//
// Every call is a server-streaming RPC. Opening a stream probes it by
// receiving the first message synchronously, so transport faults surface
// as OperationError before the caller starts iterating; a caller holding
// a Stream never sees a half-opened call fail silently.
package core

import (
	"context"
	"errors"
	"io"

	"github.com/opst/stevedore/pkg/domain"
	"github.com/opst/stevedore/pkg/tasks/taskerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	methodBuild            = "/corepb.Core/Build"
	methodCreateContainers = "/corepb.Core/CreateContainers"
	methodRemoveContainers = "/corepb.Core/RemoveContainers"
)

// Stream yields result messages of one remote operation.
type Stream interface {
	// Next returns the next message, or io.EOF after the last one.
	Next() (Message, error)
}

type Client interface {
	// Build streams progress of building an image for (repo, commit).
	Build(ctx context.Context, req BuildRequest) (Stream, error)

	// CreateContainers streams per-container create results.
	CreateContainers(ctx context.Context, opts domain.DeployOptions) (Stream, error)

	// RemoveContainers streams per-container remove results.
	RemoveContainers(ctx context.Context, ids []string) (Stream, error)
}

type grpcClient struct {
	conn *grpc.ClientConn
}

var _ Client = &grpcClient{}

// Dial prepares a client for one core endpoint. The connection is lazy;
// faults surface at the stream probe of the first call.
func Dial(target string) (*grpcClient, error) {
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, err
	}
	return &grpcClient{conn: conn}, nil
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}

func (c *grpcClient) Build(ctx context.Context, req BuildRequest) (Stream, error) {
	return c.open(ctx, "Build", methodBuild, req)
}

func (c *grpcClient) CreateContainers(ctx context.Context, opts domain.DeployOptions) (Stream, error) {
	return c.open(ctx, "CreateContainers", methodCreateContainers, opts)
}

func (c *grpcClient) RemoveContainers(ctx context.Context, ids []string) (Stream, error) {
	return c.open(ctx, "RemoveContainers", methodRemoveContainers, RemoveRequest{Ids: ids})
}

func (c *grpcClient) open(ctx context.Context, name string, method string, req interface{}) (Stream, error) {
	cs, err := c.conn.NewStream(
		ctx, &grpc.StreamDesc{StreamName: name, ServerStreams: true}, method,
	)
	if err != nil {
		return nil, asOperationError(err)
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, asOperationError(err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, asOperationError(err)
	}

	// the probe. gRPC raises transport faults on the first receive,
	// not at stream creation.
	head := Message{}
	if err := cs.RecvMsg(&head); err != nil {
		if errors.Is(err, io.EOF) {
			return &grpcStream{cs: cs, exhausted: true}, nil
		}
		return nil, asOperationError(err)
	}

	return &grpcStream{cs: cs, head: &head}, nil
}

// grpcStream replays the probed head message, then the live tail.
type grpcStream struct {
	cs        grpc.ClientStream
	head      *Message
	exhausted bool
}

var _ Stream = &grpcStream{}

func (s *grpcStream) Next() (Message, error) {
	if s.head != nil {
		head := *s.head
		s.head = nil
		return head, nil
	}
	if s.exhausted {
		return Message{}, io.EOF
	}

	m := Message{}
	if err := s.cs.RecvMsg(&m); err != nil {
		s.exhausted = true
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, asOperationError(err)
	}
	return m, nil
}

func asOperationError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return taskerr.Internal("core call failed", err)
	}
	if st.Code() == codes.Unavailable {
		return taskerr.Internal("core is not available", err)
	}
	return taskerr.Internal("core rejected the call: "+st.Message(), err)
}
