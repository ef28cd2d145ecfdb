package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/core"

	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes loan events to one topic, keyed by company and loan
// reference so each loan's events stay ordered within a partition.
type KafkaPublisher struct {
	w      messageWriter
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{w: w, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...core.LoanEvent) error {
	messages, err := buildMessages(events)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	for _, evt := range events {
		p.logger.DebugContext(ctx, "publishing loan event",
			"event_type", evt.Type,
			"loan", evt.LoanReference,
			"company", evt.CompanyCode,
			"topic", p.topic,
		)
	}
	if err := p.w.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish events to topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func buildMessages(events []core.LoanEvent) ([]kafkago.Message, error) {
	messages := make([]kafkago.Message, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", evt.Type, err)
		}
		messages = append(messages, kafkago.Message{
			Key:   []byte(evt.CompanyCode + "/" + evt.LoanReference),
			Value: payload,
			Headers: []kafkago.Header{
				{Key: "event_type", Value: []byte(evt.Type)},
				{Key: "company_code", Value: []byte(evt.CompanyCode)},
			},
			Time: evt.OccurredAt,
		})
	}
	return messages, nil
}
