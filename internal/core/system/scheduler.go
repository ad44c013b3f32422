package system

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the Runner at a fixed rate and a maintenance callback at a
// slower, independent interval. Both run on the goroutine that calls Run, so
// nothing they touch needs locking.
//
// The next tick is armed only after the current one returns, for whatever is
// left of the interval. A slow tick delays the next one instead of stacking.
type Scheduler struct {
	runner      *Runner
	rate        time.Duration
	maintenance time.Duration
	maintain    func()
	log         *zap.Logger

	ticks    uint64
	failures uint64
}

func NewScheduler(runner *Runner, rate, maintenance time.Duration, maintain func(), log *zap.Logger) *Scheduler {
	if rate <= 0 {
		rate = 100 * time.Millisecond
	}
	return &Scheduler{
		runner:      runner,
		rate:        rate,
		maintenance: maintenance,
		maintain:    maintain,
		log:         log,
	}
}

// RateFromUPS converts updates per second into a tick interval.
func RateFromUPS(ups int) time.Duration {
	if ups <= 0 {
		ups = 10
	}
	return time.Second / time.Duration(ups)
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := time.NewTimer(0)
	defer tick.Stop()

	var maintC <-chan time.Time
	if s.maintenance > 0 && s.maintain != nil {
		mt := time.NewTicker(s.maintenance)
		defer mt.Stop()
		maintC = mt.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case start := <-tick.C:
			if ctx.Err() != nil {
				return nil
			}
			dt := start.Sub(last)
			last = start
			s.cycle(dt)
			wait := s.rate - time.Since(start)
			if wait < 0 {
				s.log.Debug("tick overran", zap.Duration("elapsed", s.rate-wait))
				wait = 0
			}
			tick.Reset(wait)
		case <-maintC:
			s.guard("maintenance", s.maintain)
		}
	}
}

// Ticks returns how many cycles have completed, failed ones included.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Failures returns how many cycles panicked.
func (s *Scheduler) Failures() uint64 { return s.failures }

func (s *Scheduler) cycle(dt time.Duration) {
	s.ticks++
	s.guard("tick", func() { s.runner.Tick(dt) })
}

func (s *Scheduler) guard(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.failures++
			s.log.Error("cycle panic recovered",
				zap.String("cycle", name),
				zap.Uint64("tick", s.ticks),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	fn()
}
