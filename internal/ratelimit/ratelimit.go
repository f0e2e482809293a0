// Package ratelimit bounds request volume per caller identity before any
// session state is touched.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per caller. It is independent of session
// state and takes its own lock, never inside a session mutation's critical
// section.
type Limiter struct {
	mu      sync.Mutex
	callers map[string]*entry

	rps   rate.Limit
	burst int
}

func New(rps, burst int) *Limiter {
	return &Limiter{
		callers: make(map[string]*entry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Admit reports whether callerID may proceed right now.
func (l *Limiter) Admit(callerID string) bool {
	l.mu.Lock()
	e, ok := l.callers[callerID]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.callers[callerID] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.lim.Allow()
}

// Sweep drops callers idle longer than maxIdle so the map stays bounded.
func (l *Limiter) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, e := range l.callers {
		if e.lastSeen.Before(cutoff) {
			delete(l.callers, id)
			n++
		}
	}
	return n
}
