// Package ratelimit bounds inbound message throughput per user with a
// sliding window of admission timestamps.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most N messages per user within a sliding window.
type Limiter struct {
	mu           sync.Mutex
	users        map[int64][]time.Time
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	messages        int
	window          time.Duration
	cleanupInterval time.Duration

	now func() time.Time // stubbed in tests
}

// Config holds rate limiter configuration.
type Config struct {
	Messages        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults: 5 messages per 60 seconds.
func DefaultConfig() Config {
	return Config{
		Messages:        5,
		Window:          60 * time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config Config) *Limiter {
	if config.Messages <= 0 || config.Window <= 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &Limiter{
		users:           make(map[int64][]time.Time),
		stopCleanup:     make(chan struct{}),
		messages:        config.Messages,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether a message from the given user should be admitted,
// recording the admission when it is. Timestamps older than the window are
// pruned on every call, so the window slides rather than resets.
func (rl *Limiter) Allow(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	kept := rl.users[userID][:0]
	for _, ts := range rl.users[userID] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.messages {
		rl.users[userID] = kept
		return false
	}

	rl.users[userID] = append(kept, now)
	return true
}

// ActiveUsers returns the number of currently tracked users.
func (rl *Limiter) ActiveUsers() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.users)
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops users whose whole window has elapsed.
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for userID, timestamps := range rl.users {
		stale := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(rl.users, userID)
		}
	}
}

// Stop gracefully shuts down the cleanup goroutine.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
