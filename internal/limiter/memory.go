package limiter

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process limiter with a failure window (starting at the
// first failure and restarting once it has elapsed) and lockout.
// State is keyed by (username, ipHash) and lives for the server's lifetime.
type Memory struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

type bucket struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		buckets:  make(map[string]*bucket),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
	}
}

func key(username string, ipHash []byte) string {
	return username + "\x00" + string(ipHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key(username, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := time.Now(); b.blockedUntil.After(now) {
		return false, b.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters after a successful login.
func (l *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key(username, ipHash))
	return nil
}

// Failure records a failed attempt; once maxFails accumulate inside the
// window the pair is blocked for blockFor.
func (l *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	k := key(username, ipHash)
	b, ok := l.buckets[k]
	if !ok || now.Sub(b.firstFail) > l.window {
		b = &bucket{firstFail: now}
		l.buckets[k] = b
	}
	b.fails++
	if b.fails >= l.maxFails {
		b.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
