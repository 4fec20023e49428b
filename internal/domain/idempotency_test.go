package domain

import (
	"errors"
	"testing"
	"time"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ttl  time.Time
		want bool
	}{
		{name: "zero ttl never expires", ttl: time.Time{}, want: false},
		{name: "future ttl", ttl: now.Add(time.Minute), want: false},
		{name: "ttl equal to now", ttl: now, want: true},
		{name: "past ttl", ttl: now.Add(-time.Second), want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := IdempotencyRecord{TTLAt: tc.ttl}
			if got := rec.Expired(now); got != tc.want {
				t.Fatalf("Expired()=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestIdempotencyRecordCompleted(t *testing.T) {
	if (IdempotencyRecord{Status: IdempotencyStatusProcessing}).Completed() {
		t.Fatal("processing record must not be completed")
	}
	if !(IdempotencyRecord{Status: IdempotencyStatusFailed}).Completed() {
		t.Fatal("failed record must be completed")
	}
}

func TestNewIdempotencyClaim(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		key     string
		hash    string
		ttlAt   time.Time
		wantErr error
		wantTTL time.Time
	}{
		{name: "default ttl", key: " k1 ", hash: "h", wantTTL: now.Add(DefaultIdempotencyTTL)},
		{name: "explicit ttl", key: "k1", hash: "h", ttlAt: now.Add(time.Minute), wantTTL: now.Add(time.Minute)},
		{name: "blank key", key: "  ", hash: "h", wantErr: ErrIdempotencyKeyRequired},
		{name: "blank hash", key: "k1", hash: " ", wantErr: ErrIdempotencyRequestHashRequired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record, err := NewIdempotencyClaim(tc.key, tc.hash, tc.ttlAt, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if record.Key != "k1" || record.Status != IdempotencyStatusProcessing {
				t.Fatalf("unexpected record: %+v", record)
			}
			if !record.TTLAt.Equal(tc.wantTTL) {
				t.Fatalf("ttl=%v, want %v", record.TTLAt, tc.wantTTL)
			}
		})
	}
}

func TestIdempotencyRecordConflictWith(t *testing.T) {
	record := IdempotencyRecord{Key: "k1", RequestHash: "h1"}

	if err := record.ConflictWith("h1"); !errors.Is(err, ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("same hash: got %v", err)
	}
	if err := record.ConflictWith("h2"); !errors.Is(err, ErrIdempotencyHashMismatch) {
		t.Fatalf("other hash: got %v", err)
	}
}
