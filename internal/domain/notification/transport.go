package notification

import (
	"context"
	"fmt"
	"time"
)

// Message is one formatted warning for one occurrence.
type Message struct {
	Key        Key
	Occurrence time.Time
	Text       string
}

// Transport delivers warnings to the outside world.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// RateLimitError is returned by a Transport when the remote side asks the caller to back off.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
