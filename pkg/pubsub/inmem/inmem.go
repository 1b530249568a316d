// Package inmem is an in-process Broker for single-node deployments and
// tests. Daemons spanning processes use the postgres transport instead.
package inmem

import (
	"context"
	"sync"

	"github.com/opst/stevedore/pkg/pubsub"
)

type broker struct {
	mu     sync.Mutex
	topics map[string][]*subscriber
}

func New() *broker {
	return &broker{topics: map[string][]*subscriber{}}
}

var _ pubsub.Broker = &broker{}

type subscriber struct {
	topic   string
	out     chan []byte
	wake    chan struct{}
	mu      sync.Mutex
	backlog [][]byte
	closed  bool
}

func (b *broker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	subs := make([]*subscriber, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.Unlock()

	// each subscriber buffers privately, so a slow reader never blocks
	// the workflow nor its sibling subscribers.
	for _, s := range subs {
		s.push(payload)
	}
	return nil
}

func (b *broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	s := &subscriber{
		topic: topic,
		out:   make(chan []byte),
		wake:  make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], s)
	b.mu.Unlock()

	release := func() {
		s.close()
		b.drop(s)
	}

	go func() {
		defer close(s.out)
		defer b.drop(s)

		for {
			if s.isClosed() {
				return
			}

			payload, ok := s.pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-s.wake:
					continue
				}
			}

			if pubsub.IsDone(topic, payload) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case s.out <- payload:
			}
		}
	}()

	return s.out, release, nil
}

func (b *broker) drop(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[s.topic]
	for nth, sub := range subs {
		if sub == s {
			b.topics[s.topic] = append(subs[:nth], subs[nth+1:]...)
			break
		}
	}
	if len(b.topics[s.topic]) == 0 {
		delete(b.topics, s.topic)
	}
}

func (s *subscriber) push(payload []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.backlog = append(s.backlog, payload)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.backlog) == 0 {
		return nil, false
	}
	head := s.backlog[0]
	s.backlog = s.backlog[1:]
	return head, true
}

func (s *subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}
