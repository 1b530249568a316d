// Package pubsub is the progress-channel primitive.
//
// Workflows publish incremental JSON messages on a topic keyed by
// operation id; callers subscribe and stream them until the terminal
// sentinel arrives.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

const donePrefix = "DONE:"

// HealthTopic carries health events from the API daemon to the
// reconcile loop. It has no terminal sentinel; subscriptions end with
// their context.
const HealthTopic = "health"

// Done is the terminal sentinel for topic.
//
// Publishing it ends every subscription on the topic. The sentinel itself
// is never delivered to subscribers.
func Done(topic string) []byte {
	return []byte(donePrefix + topic)
}

// IsDone tests whether payload is the terminal sentinel of topic.
func IsDone(topic string, payload []byte) bool {
	return string(payload) == donePrefix+topic
}

// Note builds a human-readable progress line, published on an operation
// topic alongside structured result messages. Subscribers tell them
// apart by the "type" field.
func Note(format string, a ...any) []byte {
	payload, _ := json.Marshal(map[string]string{
		"type":    "sentence",
		"message": fmt.Sprintf(format, a...),
	})
	return payload
}

// Topic of progress messages for one operation.
func OperationTopic(operationId string) string {
	return "op." + operationId
}

type Broker interface {
	// Publish sends payload to every current subscriber of topic.
	//
	// Within one topic, publish order is preserved to all subscribers.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe starts receiving messages of topic.
	//
	// The returned channel closes when Done(topic) is published, or when
	// ctx ends, or when the returned release function is called. Each
	// subscriber receives every message published while subscribed
	// (fan-out, not queue).
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error)
}
