package mock

import (
	"context"
	"errors"

	mocks "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/pubsub"
)

type PublishArgs struct {
	Topic   string
	Payload string
}

// Broker records published payloads. Publish succeeds unless Impl is
// set; Subscribe panics unless Impl is set.
type Broker struct {
	Impl struct {
		Publish   func(ctx context.Context, topic string, payload []byte) error
		Subscribe func(ctx context.Context, topic string) (<-chan []byte, func(), error)
	}
	Calls struct {
		Publish   mocks.CallLog[PublishArgs]
		Subscribe mocks.CallLog[string]
	}
}

var _ pubsub.Broker = &Broker{}

func New() *Broker {
	return &Broker{}
}

func (m *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	m.Calls.Publish = append(m.Calls.Publish, PublishArgs{Topic: topic, Payload: string(payload)})
	if m.Impl.Publish != nil {
		return m.Impl.Publish(ctx, topic, payload)
	}
	return nil
}

func (m *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	m.Calls.Subscribe = append(m.Calls.Subscribe, topic)
	if m.Impl.Subscribe != nil {
		return m.Impl.Subscribe(ctx, topic)
	}

	panic(errors.New("it should not be called"))
}
