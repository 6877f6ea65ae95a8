package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleDisabledWhenRateZero(t *testing.T) {
	throttle := NewThrottle(0, 1)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, throttle.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestThrottleNilReceiverIsNoop(t *testing.T) {
	var throttle *Throttle
	assert.NoError(t, throttle.Wait(context.Background()))
}

func TestThrottleBurstThenDelay(t *testing.T) {
	// 10/s with burst 2: two immediate tokens, the third waits ~100ms
	throttle := NewThrottle(10, 2)

	start := time.Now()
	require.NoError(t, throttle.Wait(context.Background()))
	require.NoError(t, throttle.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, throttle.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestThrottleRespectsContextCancellation(t *testing.T) {
	throttle := NewThrottle(0.1, 1)
	require.NoError(t, throttle.Wait(context.Background())) // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := throttle.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
