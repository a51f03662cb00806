package cooldown_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aurabot/aura/internal/guard/cooldown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRegistry(t *testing.T) *cooldown.Registry {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	r := cooldown.NewRegistry(logger)
	t.Cleanup(r.Close)

	return r
}

func TestCheckAndStartDeniedThenAllowed(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	first := r.CheckAndStart("ban", 123, 200*time.Millisecond)
	assert.True(t, first.Allowed)

	second := r.CheckAndStart("ban", 123, 200*time.Millisecond)
	assert.False(t, second.Allowed)
	assert.Positive(t, second.Remaining)
	assert.LessOrEqual(t, second.Remaining, 200*time.Millisecond)

	time.Sleep(250 * time.Millisecond)

	third := r.CheckAndStart("ban", 123, 200*time.Millisecond)
	assert.True(t, third.Allowed)
}

func TestDeniedCallDoesNotExtendCooldown(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	require.True(t, r.CheckAndStart("warn", 1, 200*time.Millisecond).Allowed)

	time.Sleep(100 * time.Millisecond)

	denied := r.CheckAndStart("warn", 1, 200*time.Millisecond)
	require.False(t, denied.Allowed)

	// The denied call must not have reset the expiry
	time.Sleep(150 * time.Millisecond)
	assert.True(t, r.CheckAndStart("warn", 1, 200*time.Millisecond).Allowed)
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	require.True(t, r.CheckAndStart("kick", 1, time.Minute).Allowed)

	// Same actor, different command
	assert.True(t, r.CheckAndStart("ban", 1, time.Minute).Allowed)

	// Same command, different actor
	assert.True(t, r.CheckAndStart("kick", 2, time.Minute).Allowed)

	// The original pair stays on cooldown
	assert.False(t, r.CheckAndStart("kick", 1, time.Minute).Allowed)
}

func TestConcurrentChecksAllowExactlyOne(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)

	for i := 0; i < 64; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if r.CheckAndStart("mute", 777, time.Minute).Allowed {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(1), allowed.Load())
}

func TestRemainingSecondsRounding(t *testing.T) {
	t.Parallel()

	result := cooldown.Result{Remaining: 2949 * time.Millisecond}
	assert.InDelta(t, 2.9, result.RemainingSeconds(), 0.001)

	result = cooldown.Result{Remaining: 2951 * time.Millisecond}
	assert.InDelta(t, 3.0, result.RemainingSeconds(), 0.001)
}
