// Package postgres carries the progress channel over LISTEN/NOTIFY, so
// that the API daemon can stream operations run by another process
// sharing the database.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/pubsub"
)

type broker struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *broker {
	return &broker{pool: pool}
}

var _ pubsub.Broker = &broker{}

func (b *broker) Publish(ctx context.Context, topic string, payload []byte) error {
	// pg_notify takes the channel name as a plain string,
	// sidestepping identifier quoting.
	_, err := b.pool.Exec(ctx, `select pg_notify($1, $2)`, topic, string(payload))
	return err
}

func (b *broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	// LISTEN binds to a session, so the subscription owns one pooled
	// connection until it ends.
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	if _, err := conn.Exec(sctx, `listen `+pgx.Identifier{topic}.Sanitize()); err != nil {
		cancel()
		conn.Release()
		return nil, nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer conn.Release()
		defer cancel()

		for {
			notification, err := conn.Conn().WaitForNotification(sctx)
			if err != nil {
				return
			}

			payload := []byte(notification.Payload)
			if pubsub.IsDone(topic, payload) {
				return
			}

			select {
			case <-sctx.Done():
				return
			case out <- payload:
			}
		}
	}()

	return out, cancel, nil
}
