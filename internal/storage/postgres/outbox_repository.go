package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// Статусы строки outbox_messages.
const (
	outboxPending = "pending"
	outboxSent    = "sent"
	outboxFailed  = "failed"

	defaultOutboxBatch = 100
)

type outboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{db: store.DB()}
}

// Enqueue пишет одно сообщение вне транзакции сущности.
func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	saved, err := insertOutboxMessages(ctx, r.db, []domain.OutboxMessage{msg})
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	return saved[0], nil
}

// execer - общий интерфейс *sql.DB и *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertOutboxMessages пишет события одним INSERT; в транзакции сущности вызывается с *sql.Tx.
// Пустой ID заполняется UUID.
func insertOutboxMessages(ctx context.Context, db execer, msgs []domain.OutboxMessage) ([]domain.OutboxMessage, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	const cols = 6
	now := time.Now().UTC()
	saved := make([]domain.OutboxMessage, len(msgs))
	values := make([]string, len(msgs))
	args := make([]any, 0, len(msgs)*cols)
	for i, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		saved[i] = msg

		n := i * cols
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, '%s', 0, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, outboxPending, n+6, n+6)
		args = append(args, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now)
	}

	query := `INSERT INTO outbox_messages
		(id, aggregate_type, aggregate_id, event_type, payload, status, attempt_count, created_at, updated_at)
		VALUES ` + strings.Join(values, ", ")
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("enqueue %d outbox messages: %w", len(msgs), err)
	}
	return saved, nil
}

// PullPending возвращает самые старые pending-сообщения; статус не меняется,
// пока worker не вызовет MarkSent или MarkFailed.
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`, outboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	defer rows.Close()

	var pending []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		pending = append(pending, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return pending, nil
}

// Stats возвращает размер очереди pending и время самого старого сообщения.
func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = $1`, outboxPending,
	).Scan(&stats.PendingCount, &oldest)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.settle(ctx, id, outboxSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.settle(ctx, id, outboxFailed)
}

// settle фиксирует итог публикации и увеличивает счётчик попыток.
// Неизвестный id даёт domain.ErrOutboxPublish.
func (r *outboxRepository) settle(ctx context.Context, id, status string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING attempt_count
	`, id, status).Scan(&attempts)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	case err != nil:
		return fmt.Errorf("mark outbox message %s as %s: %w", id, status, err)
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
