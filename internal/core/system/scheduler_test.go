package system

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordSystem struct {
	phase Phase
	name  string
	log   *[]string
}

func (s *recordSystem) Phase() Phase { return s.phase }
func (s *recordSystem) Update(time.Duration) {
	*s.log = append(*s.log, s.name)
}

func TestRunner_PhaseOrder(t *testing.T) {
	var got []string
	r := NewRunner()
	r.Register(&recordSystem{phase: PhaseOutput, name: "output", log: &got})
	r.Register(&recordSystem{phase: PhaseInput, name: "input", log: &got})
	r.Register(&recordSystem{phase: PhaseRegion, name: "region-a", log: &got})
	r.Register(&recordSystem{phase: PhaseRegion, name: "region-b", log: &got})
	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input", "region-a", "region-b", "output"}, got)

	got = got[:0]
	r.TickPhase(PhaseRegion, time.Millisecond)
	assert.Equal(t, []string{"region-a", "region-b"}, got)
}

type funcSystem struct {
	fn func()
}

func (funcSystem) Phase() Phase           { return PhaseUpdate }
func (s funcSystem) Update(time.Duration) { s.fn() }

func TestScheduler_SurvivesPanics(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRunner()
	r.Register(funcSystem{fn: func() {
		if ctx.Err() != nil {
			return
		}
		n := calls.Add(1)
		if n%2 == 1 {
			panic("boom")
		}
		if n >= 6 {
			cancel()
		}
	}})

	s := NewScheduler(r, time.Millisecond, 0, nil, zap.NewNop())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(6))
	assert.Equal(t, uint64(3), s.Failures())
}

func TestScheduler_NoOverlap(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRunner()
	r.Register(funcSystem{fn: func() {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(3 * time.Millisecond)
		inFlight.Add(-1)
		if calls.Add(1) == 5 {
			cancel()
		}
	}})

	maint := func() {
		if inFlight.Load() != 0 {
			maxInFlight.Store(99)
		}
	}
	s := NewScheduler(r, time.Millisecond, time.Millisecond, maint, zap.NewNop())
	_ = s.Run(ctx)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestRateFromUPS(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, RateFromUPS(10))
	assert.Equal(t, 50*time.Millisecond, RateFromUPS(20))
	assert.Equal(t, 100*time.Millisecond, RateFromUPS(0))
}
