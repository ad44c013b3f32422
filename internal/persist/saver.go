package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/world"
)

// Saver writes player snapshots off the game loop. Snapshots are taken in
// the tick and handed over by value.
type Saver struct {
	store   Store
	jobs    chan world.Snapshot
	timeout time.Duration
	log     *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSaver starts workers goroutines draining a queue of size queue.
func NewSaver(store Store, workers, queue int, timeout time.Duration, log *zap.Logger) *Saver {
	if workers < 1 {
		workers = 1
	}
	s := &Saver{
		store:   store,
		jobs:    make(chan world.Snapshot, queue),
		timeout: timeout,
		log:     log,
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.run()
	}
	return s
}

func (s *Saver) run() {
	defer s.wg.Done()
	for snap := range s.jobs {
		s.save(snap)
	}
}

func (s *Saver) save(snap world.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.SavePlayer(ctx, snap); err != nil {
		s.log.Error("save player failed", zap.String("player", snap.Username), zap.Error(err))
		return
	}
	s.log.Debug("player saved", zap.String("player", snap.Username))
}

// Enqueue hands a snapshot to the workers without blocking. A full queue
// drops the save and reports false.
func (s *Saver) Enqueue(snap world.Snapshot) bool {
	select {
	case s.jobs <- snap:
		return true
	default:
		s.log.Warn("save queue full, dropping save", zap.String("player", snap.Username))
		return false
	}
}

// SaveNow writes synchronously on the caller's goroutine.
func (s *Saver) SaveNow(snap world.Snapshot) {
	s.save(snap)
}

// Close stops accepting work and waits for queued saves until ctx ends.
func (s *Saver) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.jobs) })
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
