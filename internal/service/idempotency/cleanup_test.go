package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func TestCleaner_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for _, key := range []string{"order-1", "order-2", "customer-1"} {
		_, err := repo.CreateProcessing(ctx, key, "hash", now.Add(-time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing(ctx, "customer-live", "hash", now.Add(time.Hour))
	require.NoError(t, err)

	cleaner := NewCleaner(repo, 2, nil)
	cleaner.now = func() time.Time { return now }

	require.NoError(t, cleaner.Run(ctx))

	_, err = repo.Get(ctx, "order-2")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "customer-live")
	require.NoError(t, err)
}

func TestCleaner_DeleteExpired(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		results   []int
		errs      []error
		batch     int
		wantTotal int
		wantCalls int
		wantErr   error
	}{
		{name: "stops on short batch", results: []int{2, 2, 1}, batch: 2, wantTotal: 5, wantCalls: 3},
		{name: "empty store", batch: 10, wantTotal: 0, wantCalls: 1},
		{name: "repository error", errs: []error{boom}, batch: 10, wantCalls: 1, wantErr: boom},
		{name: "default batch size", results: []int{defaultBatchSize, 3}, batch: 0, wantTotal: defaultBatchSize + 3, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &batchRepo{results: tt.results, errs: tt.errs}
			cleaner := NewCleaner(repo, tt.batch, nil)

			total, err := cleaner.DeleteExpired(context.Background(), time.Now())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantCalls, repo.calls)
		})
	}
}

func TestCleaner_RunIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &batchRepo{}
	cleaner := NewCleaner(repo, 10, nil)

	require.NoError(t, cleaner.Run(ctx))
	assert.Zero(t, repo.calls)
	assert.Equal(t, JobName, cleaner.Name())
}

func TestCleaner_NilRepository(t *testing.T) {
	total, err := NewCleaner(nil, 1, nil).DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, total)
}

// batchRepo отдаёт заранее заданные результаты DeleteExpired.
type batchRepo struct {
	domain.IdempotencyRepository

	results []int
	errs    []error
	calls   int
}

func (r *batchRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return 0, err
	}
	if len(r.results) == 0 {
		return 0, nil
	}
	n := r.results[0]
	r.results = r.results[1:]
	return n, nil
}
