// Package publish emits run lifecycle events to downstream consumers.
package publish

import "context"

// Publisher sends a JSON-serializable payload to a named topic and
// returns the provider's message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// NoOp discards every publish. Used when no event transport is configured.
type NoOp struct{}

func (NoOp) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
