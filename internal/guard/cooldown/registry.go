package cooldown

import (
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

const shardCount = 32

// SweepInterval bounds how long an expired entry can linger before the
// background sweep reclaims it. Lookups also reclaim lazily, so the sweep
// only matters for keys that are never checked again.
const SweepInterval = time.Minute

// Result reports the outcome of a cooldown check.
type Result struct {
	Allowed   bool
	Remaining time.Duration
}

// RemainingSeconds returns the remaining cooldown rounded to one decimal
// for user-facing display.
func (r Result) RemainingSeconds() float64 {
	return math.Round(r.Remaining.Seconds()*10) / 10
}

type entryKey struct {
	command string
	actor   snowflake.ID
}

type shard struct {
	mu      sync.Mutex
	entries map[entryKey]time.Time
}

// Registry tracks, per (command, actor) pair, when that actor may invoke
// that command again. Keys are sharded so unrelated pairs never contend on
// the same lock; the check-then-set for one key is a single atomic step
// under its shard lock. Entries are never persisted.
type Registry struct {
	shards [shardCount]*shard
	logger *zap.Logger
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewRegistry creates a cooldown registry and starts its background sweep.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger.Named("cooldown"),
		now:    time.Now,
		done:   make(chan struct{}),
	}

	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[entryKey]time.Time)}
	}

	go r.sweepLoop()

	return r
}

// CheckAndStart performs the atomic cooldown check for one (command, actor)
// pair. If no entry exists or the existing one has expired, a new entry with
// expiry now+cooldown is committed and the call is allowed. Otherwise the
// call is denied with the remaining time and the existing expiry is left
// untouched.
func (r *Registry) CheckAndStart(command string, actor snowflake.ID, cooldown time.Duration) Result {
	key := entryKey{command: command, actor: actor}
	s := r.shardFor(key)
	now := r.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return Result{Allowed: false, Remaining: expiry.Sub(now)}
	}

	s.entries[key] = now.Add(cooldown)

	return Result{Allowed: true}
}

// Close stops the background sweep. Safe to call more than once.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.done)
	})
}

func (r *Registry) shardFor(key entryKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.command))

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(key.actor) >> (8 * i))
	}

	h.Write(buf[:])

	return r.shards[h.Sum32()%shardCount]
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := r.now()
	removed := 0

	for _, s := range r.shards {
		s.mu.Lock()

		for key, expiry := range s.entries {
			if !now.Before(expiry) {
				delete(s.entries, key)

				removed++
			}
		}

		s.mu.Unlock()
	}

	if removed > 0 {
		r.logger.Debug("Swept expired cooldown entries", zap.Int("removed", removed))
	}
}
