// Package redis хранит ключи идемпотентности в Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const (
	keyPrefix     = "crm:idempotency:"
	connTimeout   = 5 * time.Second
	minimalExpiry = time.Millisecond
)

// Options - параметры подключения к Redis.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// IdempotencyRepository реализует domain.IdempotencyRepository поверх Redis.
// Истечение ключей выполняет сам Redis, поэтому DeleteExpired ничего не удаляет.
type IdempotencyRepository struct {
	client *goredis.Client
	logger *log.Entry
}

// record - JSON-представление записи в Redis.
type record struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	Status       string    `json:"status"`
	Code         int       `json:"code,omitempty"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Open подключается к Redis и проверяет соединение.
func Open(ctx context.Context, opts Options, logger *log.Entry) (*IdempotencyRepository, error) {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("connected to redis")
	return NewIdempotencyRepository(client, logger), nil
}

// NewIdempotencyRepository оборачивает готовый клиент.
func NewIdempotencyRepository(client *goredis.Client, logger *log.Entry) *IdempotencyRepository {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &IdempotencyRepository{client: client, logger: logger.WithField("component", "redis-idempotency")}
}

// Ping проверяет доступность Redis.
func (r *IdempotencyRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение.
func (r *IdempotencyRepository) Close() error {
	return r.client.Close()
}

// CreateProcessing занимает ключ через SET NX с TTL до ttlAt.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	now := time.Now().UTC()
	claim, err := domain.NewIdempotencyClaim(key, requestHash, ttlAt, now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	rec := fromDomain(claim)

	data, err := json.Marshal(rec)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	created, err := r.client.SetNX(ctx, keyPrefix+claim.Key, data, expiry(claim.TTLAt, now)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	if !created {
		existing, getErr := r.Get(ctx, claim.Key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		return existing, existing.ConflictWith(claim.RequestHash)
	}

	return rec.toDomain(), nil
}

// Get читает запись; отсутствие ключа даёт ErrIdempotencyKeyNotFound.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	rec, err := r.load(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return rec.toDomain(), nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, status int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusDone, responseBody, status)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, status int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusFailed, responseBody, status)
}

// DeleteExpired ничего не делает: TTL ключей выставляется при создании.
func (r *IdempotencyRepository) DeleteExpired(_ context.Context, _ time.Time, _ int) (int, error) {
	return 0, nil
}

func (r *IdempotencyRepository) markStatus(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, code int) error {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	rec, err := r.load(ctx, key)
	if err != nil {
		return err
	}

	rec.Status = string(status)
	rec.ResponseBody = append([]byte(nil), responseBody...)
	rec.Code = code
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := r.client.SetXX(ctx, keyPrefix+key, data, goredis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("mark idempotency key status: %w", err)
	}
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}

	r.logger.WithFields(log.Fields{"key": key, "status": status}).Debug("idempotency record updated")
	return nil
}

func (r *IdempotencyRepository) load(ctx context.Context, key string) (record, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return record{}, domain.ErrIdempotencyKeyNotFound
		}
		return record{}, fmt.Errorf("get idempotency record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	if !domain.IdempotencyStatus(rec.Status).Valid() {
		return record{}, fmt.Errorf("invalid idempotency status %q for key %s", rec.Status, key)
	}
	return rec, nil
}

func fromDomain(r domain.IdempotencyRecord) record {
	return record{
		Key:          r.Key,
		RequestHash:  r.RequestHash,
		ResponseBody: r.ResponseBody,
		Code:         r.HTTPStatus,
		Status:       string(r.Status),
		TTLAt:        r.TTLAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (rec record) toDomain() domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          rec.Key,
		RequestHash:  rec.RequestHash,
		ResponseBody: append([]byte(nil), rec.ResponseBody...),
		HTTPStatus:   rec.Code,
		Status:       domain.IdempotencyStatus(rec.Status),
		TTLAt:        rec.TTLAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// expiry переводит абсолютный TTL в относительный; просроченный TTL даёт минимальный срок.
func expiry(ttlAt, now time.Time) time.Duration {
	d := ttlAt.Sub(now)
	if d < minimalExpiry {
		return minimalExpiry
	}
	return d
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
