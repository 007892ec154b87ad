package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSub publishes run events to a Google Cloud Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
}

// NewPubSub wraps an existing Pub/Sub client.
func NewPubSub(client *pubsub.Client) *PubSub {
	return &PubSub{client: client}
}

// Publish marshals the payload to JSON and publishes it to the topic.
// The publish blocks until the server acknowledges the message.
func (p *PubSub) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	t := p.client.Topic(topic)
	defer t.Stop()

	result := t.Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}
