package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// Заголовки сообщений outbox.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderMessageID     = "x-message-id"
)

// OutboxTopicPublisher публикует outbox-сообщения в topic агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	fallback string
	// fixed, если задан, перекрывает выбор topic по агрегату.
	fixed string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
// fallback используется для агрегатов без собственного topic.
func NewOutboxPublisher(producer *Producer, fallback string) domain.OutboxPublisher {
	if fallback == "" {
		fallback = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		fallback: fallback,
	}
}

// NewDLQPublisher создаёт паблишер, отправляющий все сообщения в dead letter queue.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{
		producer: producer,
		fixed:    TopicDeadLetterQueue,
	}
}

func (p *OutboxTopicPublisher) topic(aggregateType string) string {
	if p.fixed != "" {
		return p.fixed
	}
	return TopicForAggregate(aggregateType, p.fallback)
}

type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Publish упаковывает сообщение в конверт и отправляет в topic агрегата.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	data, err := json.Marshal(outboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	return p.producer.Send(ctx, Message{
		Topic: p.topic(event.AggregateType),
		Key:   key,
		Value: data,
		Headers: map[string]string{
			HeaderEventType:     event.EventType,
			HeaderAggregateType: event.AggregateType,
			HeaderMessageID:     event.ID,
		},
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
