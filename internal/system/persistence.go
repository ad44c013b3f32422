package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/world"
)

// Snapshotter writes a snapshot synchronously. Used on shutdown.
type Snapshotter interface {
	SaveNow(snap world.Snapshot)
}

// PersistenceSystem periodically snapshots dirty players and hands them to
// the saver. Phase Persist.
type PersistenceSystem struct {
	world    *game.World
	saver    Saver
	interval time.Duration
	elapsed  time.Duration
	log      *zap.Logger
}

func NewPersistenceSystem(w *game.World, saver Saver, interval time.Duration, log *zap.Logger) *PersistenceSystem {
	return &PersistenceSystem{world: w, saver: saver, interval: interval, log: log}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	if n := s.SaveDirty(); n > 0 {
		s.log.Info("autosave queued", zap.Int("players", n))
	}
}

// SaveDirty queues a snapshot of every dirty player and clears the flag.
// Players whose save could not be queued stay dirty.
func (s *PersistenceSystem) SaveDirty() int {
	count := 0
	for _, p := range s.world.Players() {
		if !p.Dirty() {
			continue
		}
		if s.saver.Enqueue(p.Snapshot()) {
			p.ClearDirty()
			count++
		}
	}
	return count
}

// SaveAll writes every online player immediately, ignoring dirty flags.
// Called on graceful shutdown so nothing is lost.
func (s *PersistenceSystem) SaveAll(dst Snapshotter) int {
	players := s.world.Players()
	for _, p := range players {
		dst.SaveNow(p.Snapshot())
		p.ClearDirty()
	}
	s.log.Info("all players saved", zap.Int("players", len(players)))
	return len(players)
}
