// Package ratelimit keeps one token bucket per client and plugs into echo's
// RateLimiter middleware.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultIdleTTL      = 15 * time.Minute
	DefaultCleanupEvery = 2 * time.Minute

	DefaultStatsQueue = 256

	recordTimeout = time.Second
)

var _ middleware.RateLimiterStore = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	limit        rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration

	stats      Recorder
	statsQueue int
	decisions  chan decision
	dropped    atomic.Uint64

	logger *zap.Logger
	now    func() time.Time
}

type decision struct {
	allowed bool
	at      time.Time
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Option func(*Store)

func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) Option {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithStats records decisions through one worker started by StartRecorder.
// Decisions are queued off the request path; when the queue is full they are
// dropped, and failures are only logged.
func WithStats(r Recorder, l *zap.Logger) Option {
	return func(s *Store) {
		s.stats = r
		s.logger = l
	}
}

func WithStatsQueue(n int) Option {
	return func(s *Store) { s.statsQueue = n }
}

func NewStore(rps float64, burst int, opts ...Option) *Store {
	s := &Store{
		entries:      make(map[string]*entry),
		limit:        rate.Limit(rps),
		burst:        burst,
		idleTTL:      DefaultIdleTTL,
		cleanupEvery: DefaultCleanupEvery,
		statsQueue:   DefaultStatsQueue,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats != nil {
		s.decisions = make(chan decision, max(s.statsQueue, 1))
	}
	return s
}

// Allow implements middleware.RateLimiterStore.
func (s *Store) Allow(identifier string) (bool, error) {
	now := s.now()
	allowed := s.limiter(identifier, now).AllowN(now, 1)

	if s.decisions != nil {
		select {
		case s.decisions <- decision{allowed: allowed, at: now}:
		default:
			s.dropped.Add(1)
		}
	}

	return allowed, nil
}

func (s *Store) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.limit, s.burst)
	s.entries[key] = &entry{lim: lim, lastSeen: now}
	return lim
}

// StartRecorder hands queued decisions to the recorder until ctx is done.
func (s *Store) StartRecorder(ctx context.Context) {
	if s.decisions == nil {
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-s.decisions:
				s.record(ctx, d)
			}
		}
	}()
}

func (s *Store) record(ctx context.Context, d decision) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := s.stats.Record(ctx, d.allowed, d.at); err != nil {
		s.logger.Warn("failed to record rate limit decision", zap.Error(err))
	}
}

// Dropped reports how many decisions did not fit into the queue.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Cleanup drops buckets of clients idle for longer than the idle TTL.
func (s *Store) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
