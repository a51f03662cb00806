package antiraid_test

import (
	"testing"
	"time"

	"github.com/aurabot/aura/internal/guard/antiraid"
	"github.com/stretchr/testify/assert"
)

func TestRecordCountsJoinsInWindow(t *testing.T) {
	t.Parallel()

	w := antiraid.NewJoinWindow()
	base := time.Now()
	window := 10 * time.Second

	for i := 0; i < 4; i++ {
		count := w.Record(1, base.Add(time.Duration(i)*time.Second), window)
		assert.Equal(t, i+1, count)
	}

	// Fifth join still inside the window crosses the reference threshold
	count := w.Record(1, base.Add(4*time.Second), window)
	assert.Equal(t, 5, count)
}

func TestRecordPrunesOldJoins(t *testing.T) {
	t.Parallel()

	w := antiraid.NewJoinWindow()
	base := time.Now()
	window := 10 * time.Second

	w.Record(1, base, window)
	w.Record(1, base.Add(2*time.Second), window)

	// Eleven seconds later the first join has aged out
	count := w.Record(1, base.Add(11*time.Second), window)
	assert.Equal(t, 2, count)

	// And one second after that the second join is gone too
	count = w.Record(1, base.Add(13*time.Second), window)
	assert.Equal(t, 2, count)
}

func TestRecordGuildsIndependent(t *testing.T) {
	t.Parallel()

	w := antiraid.NewJoinWindow()
	now := time.Now()
	window := 10 * time.Second

	assert.Equal(t, 1, w.Record(1, now, window))
	assert.Equal(t, 2, w.Record(1, now, window))
	assert.Equal(t, 1, w.Record(2, now, window))
}

func TestResetDropsWindow(t *testing.T) {
	t.Parallel()

	w := antiraid.NewJoinWindow()
	now := time.Now()
	window := 10 * time.Second

	w.Record(1, now, window)
	w.Record(1, now, window)
	w.Reset(1)

	assert.Equal(t, 1, w.Record(1, now, window))
}
