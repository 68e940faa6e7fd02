package notify

import (
	"sync"
	"time"
)

// renameLimiter gates thread renames to at most one per thread per cooldown
// window. A rename arriving inside the window is dropped, not queued. It is
// the only shared mutable state in the dispatcher and is injected rather
// than held as a package global.
type renameLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	last     map[string]time.Time
}

// newRenameLimiter creates a limiter with the given cooldown. now is the
// clock source; tests substitute a fake one.
func newRenameLimiter(cooldown time.Duration, now func() time.Time) *renameLimiter {
	if now == nil {
		now = time.Now
	}
	return &renameLimiter{
		cooldown: cooldown,
		now:      now,
		last:     make(map[string]time.Time),
	}
}

// allow reports whether a rename of threadID may proceed right now.
func (l *renameLimiter) allow(threadID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.last[threadID]
	return !ok || l.now().Sub(last) >= l.cooldown
}

// record stamps a successful rename of threadID.
func (l *renameLimiter) record(threadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[threadID] = l.now()
}
