package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPoolOptions(t *testing.T) {
	base := poolSettings{maxConns: 25, connMaxLifetime: time.Hour}

	got := base
	for _, opt := range []Option{WithMaxConns(4), WithConnMaxLifetime(time.Minute)} {
		opt(&got)
	}
	assert.Equal(t, 4, got.maxConns)
	assert.Equal(t, time.Minute, got.connMaxLifetime)

	got = base
	WithMaxConns(0)(&got)
	WithConnMaxLifetime(-time.Second)(&got)
	assert.Equal(t, base, got, "non-positive values keep defaults")
}

func TestPgErrorCode(t *testing.T) {
	wrapped := errors.Join(errors.New("insert order"), &pgconn.PgError{Code: codeForeignKeyViolation, ConstraintName: "orders_customer_id_fkey"})

	code, constraint := pgErrorCode(wrapped)
	assert.Equal(t, codeForeignKeyViolation, code)
	assert.Equal(t, "orders_customer_id_fkey", constraint)

	assert.True(t, isEmailConflict(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: customersEmailKey}))
	assert.False(t, isEmailConflict(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "customers_pkey"}))
	assert.False(t, isEmailConflict(errors.New("plain")))
}
