package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Retry defaults: one initial attempt plus up to MaxRetries retries,
// sleeping InitialBackoff * 2^(k-1) before retry k.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 1000 * time.Millisecond
)

// Invoker executes a model call with bounded exponential backoff.
// Only rate-limit/overload failures are retried; anything else aborts
// immediately.
type Invoker struct {
	MaxRetries     int
	InitialBackoff time.Duration

	// Sleep is swappable for deterministic tests.
	Sleep func(time.Duration)

	log zerolog.Logger
}

// NewInvoker returns an Invoker with the default retry bounds.
func NewInvoker(log zerolog.Logger) *Invoker {
	return &Invoker{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		Sleep:          time.Sleep,
		log:            log,
	}
}

// Do runs call, retrying transient overload failures. op names the
// operation for logging and for the final error.
func (inv *Invoker) Do(ctx context.Context, op string, call func(context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= inv.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := inv.InitialBackoff * (1 << (attempt - 1))
			inv.log.Warn().
				Str("op", op).
				Int("retry", attempt).
				Int("max_retries", inv.MaxRetries).
				Dur("backoff", backoff).
				Msg("model overloaded, retrying")
			inv.Sleep(backoff)
		}

		inv.log.Debug().Str("op", op).Int("attempt", attempt+1).Msg("invoking model")

		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			inv.log.Error().Str("op", op).Err(err).Msg("model call failed")
			return "", err
		}
	}

	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, inv.MaxRetries+1, lastErr)
}

// IsRetryable reports whether the error message signals rate limiting
// or transient overload of the model service.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded")
}
