package grpcsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestDecodeIdempotencyFailure(t *testing.T) {
	tests := []struct {
		name     string
		record   domain.IdempotencyRecord
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "cached payload",
			record:   domain.IdempotencyRecord{ResponseBody: []byte(`{"code":13,"message":"Internal error. Please try again later."}`)},
			wantCode: codes.Internal,
			wantMsg:  "Internal error. Please try again later.",
		},
		{
			name:     "ok code in payload becomes internal",
			record:   domain.IdempotencyRecord{ResponseBody: []byte(`{"code":0,"message":"boom"}`)},
			wantCode: codes.Internal,
			wantMsg:  "boom",
		},
		{
			name:     "falls back to stored status",
			record:   domain.IdempotencyRecord{ResponseBody: []byte(`not json`), HTTPStatus: int(codes.Unavailable)},
			wantCode: codes.Unavailable,
			wantMsg:  "previous request with the same idempotency key failed",
		},
		{
			name:     "out of range status",
			record:   domain.IdempotencyRecord{HTTPStatus: 500},
			wantCode: codes.Internal,
			wantMsg:  "previous request with the same idempotency key failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := status.Convert(decodeIdempotencyFailure(tt.record))
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
		})
	}
}

func TestReadIdempotencyKey(t *testing.T) {
	_, ok := readIdempotencyKey(context.Background())
	assert.False(t, ok)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(IdempotencyKeyHeader, "  "))
	_, ok = readIdempotencyKey(ctx)
	assert.False(t, ok)

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs(IdempotencyKeyHeader, " k-1 "))
	key, ok := readIdempotencyKey(ctx)
	assert.True(t, ok)
	assert.Equal(t, "k-1", key)
}

func TestJSONCodec(t *testing.T) {
	codec := jsonCodec{}
	assert.Equal(t, "json", codec.Name())

	data, err := codec.Marshal(map[string]int{"a": 1})
	assert.NoError(t, err)

	var out map[string]int
	assert.NoError(t, codec.Unmarshal(data, &out))
	assert.Equal(t, 1, out["a"])
}
