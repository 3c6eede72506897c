package ratelimit

import (
	"context"
	"sync"
	"time"
)

type MemoryLimiter struct {
	mu           sync.Mutex
	limit        int
	window       time.Duration
	entries      map[string]*window
	lastCleanup  time.Time
	cleanupEvery time.Duration
}

type window struct {
	count int
	reset time.Time
}

func NewMemory(limit int, every time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:        limit,
		window:       every,
		entries:      map[string]*window{},
		lastCleanup:  time.Now(),
		cleanupEvery: every,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.cleanupEvery {
		for k, w := range l.entries {
			if now.After(w.reset) {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	w, ok := l.entries[key]
	if !ok || now.After(w.reset) {
		l.entries[key] = &window{count: 1, reset: now.Add(l.window)}
		return true, 0, nil
	}

	if w.count >= l.limit {
		return false, w.reset.Sub(now), nil
	}

	w.count++
	return true, 0, nil
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
