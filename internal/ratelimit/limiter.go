package ratelimit

import (
	"sync"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key (a chat ID).
type KeyedLimiter struct {
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

// NewKeyedLimiter allows burst events at once and then one per every.
// A non-positive every disables limiting.
func NewKeyedLimiter(every time.Duration, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		every:    every,
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

func (l *KeyedLimiter) get(key int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether an event for key may happen now.
func (l *KeyedLimiter) Allow(key int64) bool {
	return l.AllowAt(key, time.Now())
}

func (l *KeyedLimiter) AllowAt(key int64, now time.Time) bool {
	if l.every <= 0 {
		return true
	}
	if l.get(key).AllowN(now, 1) {
		return true
	}
	logutils.Log.WithField("chat_id", key).Debug("Rate limit exceeded")
	return false
}

// Forget drops the bucket for key.
func (l *KeyedLimiter) Forget(key int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

// Len is the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
