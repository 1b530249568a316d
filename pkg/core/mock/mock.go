package mock

import (
	"context"
	"errors"
	"io"

	"github.com/opst/stevedore/pkg/core"
	"github.com/opst/stevedore/pkg/domain"
	dbmock "github.com/opst/stevedore/internal/db/mock"
)

// FixedStream replays messages, then io.EOF.
func FixedStream(messages ...core.Message) core.Stream {
	return &fixedStream{rest: messages}
}

type fixedStream struct {
	rest []core.Message
}

func (s *fixedStream) Next() (core.Message, error) {
	if len(s.rest) == 0 {
		return core.Message{}, io.EOF
	}
	head := s.rest[0]
	s.rest = s.rest[1:]
	return head, nil
}

type Client struct {
	Impl struct {
		Build            func(ctx context.Context, req core.BuildRequest) (core.Stream, error)
		CreateContainers func(ctx context.Context, opts domain.DeployOptions) (core.Stream, error)
		RemoveContainers func(ctx context.Context, ids []string) (core.Stream, error)
	}

	Calls struct {
		Build            dbmock.CallLog[core.BuildRequest]
		CreateContainers dbmock.CallLog[domain.DeployOptions]
		RemoveContainers dbmock.CallLog[[]string]
	}
}

func NewClient() *Client {
	return &Client{}
}

var _ core.Client = &Client{}

func (m *Client) Build(ctx context.Context, req core.BuildRequest) (core.Stream, error) {
	m.Calls.Build = append(m.Calls.Build, req)
	if m.Impl.Build != nil {
		return m.Impl.Build(ctx, req)
	}

	panic(errors.New("it should not be called"))
}

func (m *Client) CreateContainers(ctx context.Context, opts domain.DeployOptions) (core.Stream, error) {
	m.Calls.CreateContainers = append(m.Calls.CreateContainers, opts)
	if m.Impl.CreateContainers != nil {
		return m.Impl.CreateContainers(ctx, opts)
	}

	panic(errors.New("it should not be called"))
}

func (m *Client) RemoveContainers(ctx context.Context, ids []string) (core.Stream, error) {
	m.Calls.RemoveContainers = append(m.Calls.RemoveContainers, ids)
	if m.Impl.RemoveContainers != nil {
		return m.Impl.RemoveContainers(ctx, ids)
	}

	panic(errors.New("it should not be called"))
}

// Dispatcher returns the same client for every zone, recording zones asked.
type Dispatcher struct {
	Core  core.Client
	Calls struct {
		GetCore dbmock.CallLog[string]
	}
}

var _ core.Dispatcher = &Dispatcher{}

func (m *Dispatcher) GetCore(zone string) (core.Client, error) {
	m.Calls.GetCore = append(m.Calls.GetCore, zone)
	return m.Core, nil
}
