package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	opTimeout   = 5 * time.Second
	pingTimeout = 5 * time.Second
)

// SQLSTATE коды, которые различает репозиторий.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	customersEmailKey = "customers_email_key"
)

type poolSettings struct {
	maxConns        int
	connMaxLifetime time.Duration
	connMaxIdleTime time.Duration
}

// Option настраивает пул соединений.
type Option func(*poolSettings)

// WithMaxConns ограничивает число открытых соединений; простаивающих держится столько же.
func WithMaxConns(n int) Option {
	return func(p *poolSettings) {
		if n > 0 {
			p.maxConns = n
		}
	}
}

// WithConnMaxLifetime ограничивает время жизни соединения.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(p *poolSettings) {
		if d > 0 {
			p.connMaxLifetime = d
		}
	}
}

// Store держит пул соединений pgx через database/sql.
type Store struct {
	db *sql.DB
}

// Open открывает пул и проверяет, что база отвечает.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool := poolSettings{
		maxConns:        25,
		connMaxLifetime: 30 * time.Minute,
		connMaxIdleTime: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&pool)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.maxConns)
	db.SetMaxIdleConns(pool.maxConns)
	db.SetConnMaxLifetime(pool.connMaxLifetime)
	db.SetConnMaxIdleTime(pool.connMaxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB отдаёт пул для репозиториев пакета.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping используется health-проверкой хранилища.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close закрывает пул; nil Store допустим.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTx выполняет fn в транзакции; при ошибке или панике транзакция откатывается.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgErrorCode возвращает SQLSTATE и имя ограничения, если ошибка пришла от PostgreSQL.
func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// isEmailConflict отличает нарушение уникальности email от коллизии первичного ключа.
func isEmailConflict(err error) bool {
	code, constraint := pgErrorCode(err)
	return code == codeUniqueViolation && constraint == customersEmailKey
}
