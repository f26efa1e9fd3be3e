package room

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes inactive rooms from a Store. It implements the
// server.Service contract: Start blocks until Stop is called.
type Sweeper struct {
	store    *Store
	interval time.Duration
	maxIdle  time.Duration
	logger   *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a Sweeper that runs every interval and deletes rooms
// idle longer than maxIdle.
//
// Precondition: store and logger must be non-nil; interval and maxIdle must be positive.
func NewSweeper(store *Store, interval, maxIdle time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
//
// Postcondition: Returns nil after Stop.
func (s *Sweeper) Start() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.store.SweepInactive(time.Now(), s.maxIdle); n > 0 {
				s.logger.Info("swept inactive rooms",
					zap.Int("swept", n),
					zap.Int("remaining", s.store.RoomCount()),
				)
			}
		case <-s.done:
			return nil
		}
	}
}

// Stop terminates the sweep loop. Calling Stop more than once is safe.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
