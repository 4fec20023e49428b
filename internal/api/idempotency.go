package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// IdempotencyTTL - срок хранения ответа по ключу идемпотентности.
const IdempotencyTTL = 24 * time.Hour

// RequestHash вычисляет sha256 от метода и канонического JSON запроса.
func RequestHash(method string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	payload := make([]byte, 0, len(method)+1+len(data))
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// ErrorPayload - сохранённый ответ неуспешного запроса.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
