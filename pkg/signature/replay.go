package signature

import (
	"sync"
	"time"
)

// ReplayGuard remembers accepted (device, timestamp) pairs for the length of
// the freshness window.
type ReplayGuard struct {
	sync.Mutex
	window    time.Duration
	seen      map[string]time.Time
	lastPrune time.Time
}

// NewReplayGuard creates a guard that forgets entries after window.
func NewReplayGuard(window time.Duration) *ReplayGuard {
	return &ReplayGuard{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// Accept records the pair and reports whether it was not seen before.
func (g *ReplayGuard) Accept(deviceID, timestamp string, now time.Time) bool {
	g.Lock()
	defer g.Unlock()

	if now.Sub(g.lastPrune) > g.window {
		g.prune(now)
	}

	key := deviceID + "\x00" + timestamp
	if expiresAt, ok := g.seen[key]; ok && now.Before(expiresAt) {
		return false
	}

	// A timestamp may be up to one window in the future, so keep the entry
	// for twice the window.
	g.seen[key] = now.Add(2 * g.window)
	return true
}

// Len returns the number of remembered pairs.
func (g *ReplayGuard) Len() int {
	g.Lock()
	defer g.Unlock()
	return len(g.seen)
}

func (g *ReplayGuard) prune(now time.Time) {
	for key, expiresAt := range g.seen {
		if !now.Before(expiresAt) {
			delete(g.seen, key)
		}
	}
	g.lastPrune = now
}
