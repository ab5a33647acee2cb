// Package redpanda publishes progress events to Redpanda/Kafka.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

// DefaultProgressTopic carries one record per XP award, keyed by user id.
const DefaultProgressTopic = "coach-progress"

type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher implements domain.EventPublisher on a franz-go client.
type Publisher struct {
	client syncProducer
	topic  string
}

// NewPublisher connects to brokers, makes sure topic exists and returns a Publisher.
func NewPublisher(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultProgressTopic
	}
	kt := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RequestRetries(10),
		kgo.DialTimeout(10*time.Second),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.WithHooks(kt.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: %w", err)
	}
	if err := ensureTopic(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to ensure progress topic", slog.String("topic", topic), slog.Any("error", err))
	}
	slog.Info("redpanda publisher ready", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Publisher{client: client, topic: topic}, nil
}

// PublishProgress writes ev synchronously. Records for one user share a partition, so they stay ordered.
func (p *Publisher) PublishProgress(ctx domain.Context, ev domain.ProgressEvent) error {
	rec, err := progressRecord(p.topic, ev)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishProgress: %w", err)
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=redpanda.PublishProgress: %w", err)
	}
	return nil
}

// Close flushes and closes the client.
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func progressRecord(topic string, ev domain.ProgressEvent) (*kgo.Record, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(ev.UserID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte("progress")},
			{Key: "reason", Value: []byte(ev.Reason)},
		},
		Timestamp: ev.At,
	}, nil
}

// Noop discards events. Used when no brokers are configured.
type Noop struct{}

// PublishProgress implements domain.EventPublisher.
func (Noop) PublishProgress(domain.Context, domain.ProgressEvent) error { return nil }
