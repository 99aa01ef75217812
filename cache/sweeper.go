/*
sweeper.go - Background purge of expired in-memory cache entries

PURPOSE:
  Memory drops expired entries only when they are read. Keys for inputs
  that are never requested again would stay forever, so the sweeper purges
  them on a fixed interval.

USAGE:
  sweeper := NewSweeper(mem, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - memory.go: Purge
  - cmd/server/main.go: started when no Redis address is configured
*/
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Purger is the part of Memory the sweeper needs.
type Purger interface {
	Purge() int
}

// Sweeper periodically purges a cache.
type Sweeper struct {
	Cache    Purger
	Logger   *zap.Logger
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a sweeper with a one minute interval.
func NewSweeper(c Purger, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Cache:    c,
		Logger:   logger,
		Interval: time.Minute,
	}
}

// Start begins sweeping. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("cache sweeper started", zap.Duration("interval", s.Interval))
}

// Stop halts the sweeper and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("cache sweeper stopped")
}

func (s *Sweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow purges immediately and returns the number of entries removed.
func (s *Sweeper) RunNow() int {
	n := s.Cache.Purge()
	if n > 0 {
		s.Logger.Debug("expired cache entries purged", zap.Int("count", n))
	}
	return n
}
