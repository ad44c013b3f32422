package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/net"
)

// TimerSystem fires every due callback on the shared wheel: combat loops,
// status loops, respawns and item lifetimes. Phase Timers.
type TimerSystem struct {
	wheel *timer.Wheel
}

func NewTimerSystem(wheel *timer.Wheel) *TimerSystem { return &TimerSystem{wheel: wheel} }

func (s *TimerSystem) Phase() coresys.Phase { return coresys.PhaseTimers }

func (s *TimerSystem) Update(_ time.Duration) { s.wheel.Advance() }

// AggroSystem lets aggressive mobs pick up players that stood still in
// their range. Movement and login already trigger the check; this covers
// mobs walking up to idle players. Phase Update.
type AggroSystem struct {
	world    *game.World
	interval time.Duration
	elapsed  time.Duration
}

func NewAggroSystem(w *game.World, interval time.Duration) *AggroSystem {
	return &AggroSystem{world: w, interval: interval}
}

func (s *AggroSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *AggroSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.world.ScanAggro()
}

// EventSystem delivers the events emitted during the previous tick.
// Phase Events.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem { return &EventSystem{bus: bus} }

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// RegionSystem sends spawn and despawn diffs for zones whose membership
// changed this tick. Phase Region.
type RegionSystem struct {
	world *game.World
}

func NewRegionSystem(w *game.World) *RegionSystem { return &RegionSystem{world: w} }

func (s *RegionSystem) Phase() coresys.Phase { return coresys.PhaseRegion }

func (s *RegionSystem) Update(_ time.Duration) { s.world.Bridge().ParseRegions() }

// OutputSystem hands every session's batched messages to its writer.
// Phase Output.
type OutputSystem struct {
	hub *net.Hub
}

func NewOutputSystem(hub *net.Hub) *OutputSystem { return &OutputSystem{hub: hub} }

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) { s.hub.FlushAll() }

// Maintenance returns the scheduler's slow callback: regrowing trees whose
// time has come.
func Maintenance(w *game.World, log *zap.Logger) func() {
	return func() {
		if n := w.RegrowTrees(w.Now()); n > 0 {
			log.Debug("maintenance", zap.Int("trees_regrown", n))
		}
	}
}
