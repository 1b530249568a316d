package mock

import (
	"context"
	"errors"

	"github.com/opst/stevedore/pkg/domain"
	mocks "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/elb"
)

type Balancer struct {
	Impl struct {
		Attach func(ctx context.Context, c domain.Container) error
		Detach func(ctx context.Context, cs ...domain.Container) error
	}
	Calls struct {
		Attach mocks.CallLog[domain.Container]
		Detach mocks.CallLog[[]domain.Container]
	}
}

var _ elb.Interface = &Balancer{}

func New() *Balancer {
	return &Balancer{}
}

func (m *Balancer) Attach(ctx context.Context, c domain.Container) error {
	m.Calls.Attach = append(m.Calls.Attach, c)
	if m.Impl.Attach != nil {
		return m.Impl.Attach(ctx, c)
	}
	return nil
}

func (m *Balancer) Detach(ctx context.Context, cs ...domain.Container) error {
	m.Calls.Detach = append(m.Calls.Detach, cs)
	if m.Impl.Detach != nil {
		return m.Impl.Detach(ctx, cs...)
	}
	return nil
}

// Strict returns a mock whose every method panics unless Impl is set.
func Strict() *Balancer {
	m := New()
	m.Impl.Attach = func(context.Context, domain.Container) error {
		panic(errors.New("it should not be called"))
	}
	m.Impl.Detach = func(context.Context, ...domain.Container) error {
		panic(errors.New("it should not be called"))
	}
	return m
}
