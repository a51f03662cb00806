package antiraid

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// JoinWindow tracks a sliding window of recent join timestamps per guild.
// State is in-memory only and lost on restart, which merely reduces burst
// detection sensitivity until the window refills.
type JoinWindow struct {
	mu     sync.Mutex
	guilds map[snowflake.ID]*guildWindow
}

type guildWindow struct {
	mu    sync.Mutex
	joins []time.Time
}

// NewJoinWindow creates an empty join window tracker.
func NewJoinWindow() *JoinWindow {
	return &JoinWindow{
		guilds: make(map[snowflake.ID]*guildWindow),
	}
}

// Record appends a join at the given instant, prunes entries older than the
// window, and returns the resulting count. Append-and-prune is one atomic
// step per guild; different guilds never contend.
func (w *JoinWindow) Record(guildID snowflake.ID, now time.Time, window time.Duration) int {
	g := w.guildFor(guildID)

	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-window)
	kept := g.joins[:0]

	for _, t := range g.joins {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	g.joins = append(kept, now)

	return len(g.joins)
}

// Reset drops the window for a guild. Used when a moderator manually clears
// raid mode so the next burst is measured from scratch.
func (w *JoinWindow) Reset(guildID snowflake.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.guilds, guildID)
}

func (w *JoinWindow) guildFor(guildID snowflake.ID) *guildWindow {
	w.mu.Lock()
	defer w.mu.Unlock()

	g, ok := w.guilds[guildID]
	if !ok {
		g = &guildWindow{}
		w.guilds[guildID] = g
	}

	return g
}
