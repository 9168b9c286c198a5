package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Delivery is one message handed to a consumer. A message may be delivered
// more than once; handlers must tolerate duplicates.
type Delivery struct {
	ID         string          `json:"id"`
	Body       json.RawMessage `json:"body"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Handler processes a delivery. A nil return acknowledges it; an error
// schedules a redelivery.
type Handler func(ctx context.Context, d Delivery) error

type Queue interface {
	Enqueue(ctx context.Context, body []byte, delay time.Duration) (string, error)
	Consume(ctx context.Context, handler Handler) error
}
