package retry

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysRetry(error) bool { return true }
func neverRetry(error) bool  { return false }

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	result := Do(context.Background(), LLMGatewayConfig(), alwaysRetry, rand.New(rand.NewSource(1)), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUpToMaxThenFails(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, JitterMax: time.Millisecond}
	calls := 0
	boom := errors.New("boom")
	result := Do(context.Background(), cfg, alwaysRetry, rand.New(rand.NewSource(1)), func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.False(t, result.Success)
	assert.Equal(t, 3, calls) // 1 initial + 2 retries
	assert.Equal(t, 3, result.Attempts)
	assert.ErrorIs(t, result.LastError, boom)
}

func TestDoStopsImmediatelyOnNonRetryable(t *testing.T) {
	calls := 0
	result := Do(context.Background(), LLMGatewayConfig(), neverRetry, rand.New(rand.NewSource(1)), func(ctx context.Context) error {
		calls++
		return errors.New("auth failure")
	})
	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	result := Do(ctx, cfg, alwaysRetry, rand.New(rand.NewSource(1)), func(ctx context.Context) error {
		return errors.New("fail")
	})
	require.Error(t, result.LastError)
	assert.False(t, result.Success)
}

func TestDoRecoversOnLaterAttempt(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	calls := 0
	result := Do(context.Background(), cfg, alwaysRetry, rand.New(rand.NewSource(2)), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, 2, calls)
}
