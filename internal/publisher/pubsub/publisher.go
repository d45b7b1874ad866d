// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JakeFAU/concept-modules/internal/publisher"
)

type sendFunc func(ctx context.Context, topic string, msg *pubsub.Message) (string, error)

// Publisher wraps a Pub/Sub client and caches topic handles.
type Publisher struct {
	defaultTopic string
	propagator   propagation.TextMapPropagator
	send         sendFunc

	mu     sync.Mutex
	client *pubsub.Client
	topics map[string]*pubsub.Topic
}

var _ publisher.Publisher = (*Publisher)(nil)

// New creates a Publisher for the provided client. defaultTopic is used when
// Publish is called without a topic.
func New(client *pubsub.Client, defaultTopic string) *Publisher {
	p := &Publisher{
		defaultTopic: defaultTopic,
		client:       client,
		topics:       make(map[string]*pubsub.Topic),
	}
	p.send = p.sendTopic
	return p
}

// Publish marshals the payload to JSON and publishes it to the topic. The
// caller's trace context travels in the message attributes.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		topic = p.defaultTopic
	}
	if topic == "" {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data}
	msg.Attributes = make(map[string]string)
	if n, ok := payload.(publisher.Notification); ok {
		msg.Attributes["kind"] = n.Kind
		msg.Attributes["module_id"] = n.ModuleID
	}
	p.textMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	id, err := p.send(ctx, topic, msg)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages on every cached topic.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
}

func (p *Publisher) textMapPropagator() propagation.TextMapPropagator {
	if p.propagator != nil {
		return p.propagator
	}
	return otel.GetTextMapPropagator()
}

func (p *Publisher) sendTopic(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	p.mu.Lock()
	t, ok := p.topics[topic]
	if !ok {
		t = p.client.Topic(topic)
		p.topics[topic] = t
	}
	p.mu.Unlock()

	result := t.Publish(ctx, msg)
	return result.Get(ctx)
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
