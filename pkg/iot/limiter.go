package iot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStore keeps one token bucket per device: dev_eui -> limiter
type LimiterStore struct {
	limiters  map[string]*rate.Limiter
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
}

// NewLimiterStore allows burst alerts per device, refilled once per window.
func NewLimiterStore(window time.Duration, burst int) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window),
		burst:    burst,
		window:   window,
	}
}

func (s *LimiterStore) limiterLocked(devEUI string) *rate.Limiter {
	limiter, exists := s.limiters[devEUI]
	if !exists {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[devEUI] = limiter
	}
	return limiter
}

// AllowAt consumes one token of the device bucket at now. Idle buckets are
// swept at most once per window.
func (s *LimiterStore) AllowAt(devEUI string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.window {
		s.pruneLocked(now)
		s.lastSweep = now
	}
	return s.limiterLocked(devEUI).AllowN(now, 1)
}

// pruneLocked drops every bucket that is full again at now. A full bucket
// allows exactly what a fresh one would.
func (s *LimiterStore) pruneLocked(now time.Time) {
	for devEUI, limiter := range s.limiters {
		if limiter.TokensAt(now) >= float64(s.burst) {
			delete(s.limiters, devEUI)
		}
	}
}
