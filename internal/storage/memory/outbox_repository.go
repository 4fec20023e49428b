package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	seq        int
	createdAt  time.Time
	updatedAt  time.Time
}

// Enqueue сохраняет событие со статусом pending.
func (s *Store) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enqueueLocked([]domain.OutboxMessage{msg})[0], nil
}

// enqueueLocked вызывается под s.mu вместе с записью сущности.
func (s *Store) enqueueLocked(msgs []domain.OutboxMessage) []domain.OutboxMessage {
	now := time.Now().UTC()
	saved := make([]domain.OutboxMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		s.outboxSeq++
		s.outbox[msg.ID] = &outboxRecord{
			msg:       msg,
			status:    outboxStatusPending,
			seq:       s.outboxSeq,
			createdAt: now,
			updatedAt: now,
		}
		saved = append(saved, msg)
	}
	return saved
}

// PullPending возвращает до limit сообщений pending в порядке постановки.
func (s *Store) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	pending := make([]*outboxRecord, 0, len(s.outbox))
	for _, rec := range s.outbox {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	s.mu.RUnlock()

	sortStable(pending, false, func(a, b *outboxRecord) int { return a.seq - b.seq })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и возраст старейшего pending-сообщения.
func (s *Store) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxStats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.OutboxStats
	for _, rec := range s.outbox {
		if rec.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent помечает сообщение отправленным.
func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.markOutbox(ctx, id, outboxStatusSent)
}

// MarkFailed помечает сообщение неотправленным после всех попыток.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.markOutbox(ctx, id, outboxStatusFailed)
}

func (s *Store) markOutbox(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.status = status
	rec.attemptCnt++
	rec.updatedAt = time.Now().UTC()
	return nil
}

var _ domain.OutboxRepository = (*Store)(nil)
