package core

import (
	"errors"
	"io"
	"testing"

	"github.com/opst/stevedore/pkg/tasks/taskerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeClientStream serves canned messages. Only RecvMsg is exercised by
// grpcStream; the embedded nil interface traps anything else.
type fakeClientStream struct {
	grpc.ClientStream
	msgs []Message
	err  error
}

func (f *fakeClientStream) RecvMsg(m interface{}) error {
	if len(f.msgs) == 0 {
		if f.err != nil {
			return f.err
		}
		return io.EOF
	}
	*(m.(*Message)) = f.msgs[0]
	f.msgs = f.msgs[1:]
	return nil
}

func TestGrpcStream(t *testing.T) {
	t.Run("the probed head is replayed before the live tail", func(t *testing.T) {
		head := Message{Id: "container-aaaa-0001", Success: true}
		tail := []Message{
			{Id: "container-aaaa-0002", Success: true},
			{Id: "container-aaaa-0003", Success: false, Error: "no space left"},
		}
		s := &grpcStream{cs: &fakeClientStream{msgs: tail}, head: &head}

		got := []Message{}
		for {
			m, err := s.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, m)
		}

		if len(got) != 3 {
			t.Fatalf("unexpected message count: %d", len(got))
		}
		if got[0].Id != head.Id || !got[0].Success {
			t.Errorf("head should come first: %+v", got[0])
		}
		if got[1].Id != "container-aaaa-0002" || got[2].Error != "no space left" {
			t.Errorf("unexpected tail: %+v", got[1:])
		}
	})

	t.Run("a stream probed to emptiness yields EOF at once", func(t *testing.T) {
		s := &grpcStream{cs: &fakeClientStream{}, exhausted: true}
		if _, err := s.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	t.Run("a mid-stream fault surfaces once, then EOF", func(t *testing.T) {
		fault := status.Error(codes.Internal, "scheduler crashed")
		s := &grpcStream{cs: &fakeClientStream{err: fault}}

		_, err := s.Next()
		oe, ok := taskerr.As(err)
		if !ok || oe.Code != 500 {
			t.Fatalf("unexpected error: %+v", err)
		}
		if _, err := s.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("unexpected error after the fault: %+v", err)
		}
	})
}

func TestAsOperationError(t *testing.T) {
	t.Run("unavailable core", func(t *testing.T) {
		err := asOperationError(status.Error(codes.Unavailable, "connection refused"))
		oe, ok := taskerr.As(err)
		if !ok || oe.Code != 500 || oe.Message != "core is not available" {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	t.Run("remote rejection carries the remote message", func(t *testing.T) {
		err := asOperationError(status.Error(codes.InvalidArgument, "no such pod"))
		oe, ok := taskerr.As(err)
		if !ok || oe.Code != 500 {
			t.Fatalf("unexpected error: %+v", err)
		}
		if oe.Message != "core rejected the call: no such pod" {
			t.Errorf("unexpected message: %s", oe.Message)
		}
	})
}
