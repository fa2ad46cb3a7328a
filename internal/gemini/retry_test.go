package gemini

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcardoso/agronota/internal/logger"
)

func newTestInvoker() (*Invoker, *[]time.Duration) {
	slept := []time.Duration{}
	inv := NewInvoker(logger.NewWithWriter(io.Discard))
	inv.Sleep = func(d time.Duration) { slept = append(slept, d) }
	return inv, &slept
}

func TestInvokerRecoversFromTransientOverload(t *testing.T) {
	inv, slept := newTestInvoker()

	calls := 0
	out, err := inv.Do(context.Background(), "extract", func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("503 the model is overloaded")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, *slept)
}

func TestInvokerAbortsOnNonRetryableError(t *testing.T) {
	inv, slept := newTestInvoker()

	wantErr := errors.New("invalid argument")
	calls := 0
	_, err := inv.Do(context.Background(), "extract", func(context.Context) (string, error) {
		calls++
		return "", wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept, "non-retryable failures must not sleep")
}

func TestInvokerGivesUpAfterRetryBudget(t *testing.T) {
	inv, slept := newTestInvoker()

	underlying := errors.New("429 rate limited")
	calls := 0
	_, err := inv.Do(context.Background(), "extract", func(context.Context) (string, error) {
		calls++
		return "", underlying
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "one initial attempt plus three retries")
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "4 attempts")
	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
	}, *slept)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", errors.New("googleapi: Error 429: quota exceeded"), true},
		{"http 503", errors.New("503 service unavailable"), true},
		{"overloaded marker", errors.New("the model is overloaded, try later"), true},
		{"invalid argument", errors.New("invalid argument"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
