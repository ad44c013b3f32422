package event

import "github.com/tilerealm/server/internal/core/ecs"

type PlayerLoggedIn struct {
	Player ecs.ID
	Name   string
}

type PlayerLoggedOut struct {
	Player    ecs.ID
	Name      string
	SessionID uint64
}

// MobKilled carries kill credit. Killer is zero when the mob died to a
// non-player source.
type MobKilled struct {
	Mob    ecs.ID
	Key    string
	Level  int
	Killer ecs.ID
	X, Y   int
}

type PlayerDied struct {
	Player ecs.ID
	Name   string
	Killer ecs.ID
}
