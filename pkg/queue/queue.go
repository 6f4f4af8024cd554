// Package queue is a small Redis list based job queue with delayed retries
// and a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues messages for a registered job type.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
	// PollInterval is how often due retries are moved back to the queue.
	PollInterval time.Duration
}

type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var out T
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &out, nil
	case []byte:
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
