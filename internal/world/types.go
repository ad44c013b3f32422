package world

import "github.com/tilerealm/server/internal/core/ecs"

// Instance is the runtime identity of one live entity.
type Instance = ecs.ID

// Kind discriminates entity variants on the wire.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindMob
	KindNPC
	KindItem
	KindChest
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindMob:
		return "mob"
	case KindNPC:
		return "npc"
	case KindItem:
		return "item"
	case KindChest:
		return "chest"
	case KindProjectile:
		return "projectile"
	}
	return "unknown"
}

type Orientation uint8

const (
	OrientationDown Orientation = iota
	OrientationUp
	OrientationLeft
	OrientationRight
)
