package system

import (
	"time"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/game"
)

// RegenSystem heals idle characters once per regen interval. Elapsed tick
// time is accumulated so the cadence does not depend on the tick rate.
// Phase Update.
type RegenSystem struct {
	world    *game.World
	interval time.Duration
	elapsed  time.Duration
}

func NewRegenSystem(w *game.World, interval time.Duration) *RegenSystem {
	return &RegenSystem{world: w, interval: interval}
}

func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *RegenSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	for s.elapsed >= s.interval {
		s.elapsed -= s.interval
		s.world.Regenerate()
	}
}
