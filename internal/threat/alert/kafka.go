// Package alert delivers threat notifications out of band over Kafka. The
// publisher sits behind a bounded queue so a slow or unreachable broker can
// never stall detection; overflow drops the alert and counts it.
package alert

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"sentra/internal/threat"
)

type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	queue  chan threat.Alert
	logger *slog.Logger

	onDrop func()
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) { p.logger = logger }
}

// WithDropHook registers a callback invoked when an alert is dropped.
func WithDropHook(fn func()) Option {
	return func(p *KafkaPublisher) { p.onDrop = fn }
}

// NewKafkaPublisher connects to the given brokers. queueSize bounds in-flight
// alerts awaiting produce.
func NewKafkaPublisher(brokers []string, topic string, queueSize int, opts ...Option) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &KafkaPublisher{
		client: client,
		topic:  topic,
		queue:  make(chan threat.Alert, queueSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish enqueues an alert without blocking the caller.
func (p *KafkaPublisher) Publish(alert threat.Alert) {
	select {
	case p.queue <- alert:
	default:
		if p.onDrop != nil {
			p.onDrop()
		}
		p.logger.Warn("alert queue full, alert dropped", "type", alert.Type)
	}
}

// Run drains the queue and produces to Kafka until ctx is done.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.client.Close()
			return ctx.Err()
		case alert := <-p.queue:
			p.produce(ctx, alert)
		}
	}
}

func (p *KafkaPublisher) produce(ctx context.Context, alert threat.Alert) {
	value, err := json.Marshal(alert)
	if err != nil {
		p.logger.Error("alert encode failed", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(alert.SourceIP),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("alert produce failed", "type", alert.Type, "error", err)
		}
	})
}
