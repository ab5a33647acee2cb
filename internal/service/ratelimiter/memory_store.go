package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

type window struct {
	count int
	reset time.Time
}

// MemoryStore keeps windows in process memory. Suitable for a single instance only.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: map[string]*window{}, now: time.Now}
}

// Check implements domain.AdmissionStore.
func (s *MemoryStore) Check(_ context.Context, key string, limit int, win time.Duration) (domain.RateDecision, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{count: 1, reset: now.Add(win)}
		s.windows[key] = w
		return domain.RateDecision{Allowed: true, Remaining: limit - 1, ResetTime: w.reset}, nil
	}
	if w.count >= limit {
		return domain.RateDecision{Allowed: false, Remaining: 0, ResetTime: w.reset}, nil
	}
	w.count++
	return domain.RateDecision{Allowed: true, Remaining: limit - w.count, ResetTime: w.reset}, nil
}

// Prune drops windows whose reset time has passed and reports how many were removed.
func (s *MemoryStore) Prune() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, w := range s.windows {
		if now.After(w.reset) {
			delete(s.windows, k)
			n++
		}
	}
	return n
}

// Run prunes expired windows every interval until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Prune()
		}
	}
}

func (s *MemoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
