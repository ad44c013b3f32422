package packet

import "fmt"

// Opcode tags every message in both directions.
type Opcode uint8

const (
	OpHandshake Opcode = iota
	OpLogin
	OpWelcome
	OpReady
	OpSpawn
	OpDespawn
	OpWho
	OpMovement
	OpTarget
	OpCombat
	OpProjectile
	OpPoints
	OpExperience
	OpDeath
	OpRespawn
	OpRegion
	OpChat
	OpNotification
	OpBlink
	OpInventory
	OpChest
	OpPVP
	OpAudio
	OpOverlay
	OpCamera
	OpTeleport
	OpNPC
	opCount
)

var opNames = [...]string{
	"Handshake", "Login", "Welcome", "Ready", "Spawn", "Despawn", "Who",
	"Movement", "Target", "Combat", "Projectile", "Points", "Experience",
	"Death", "Respawn", "Region", "Chat", "Notification", "Blink",
	"Inventory", "Chest", "PVP", "Audio", "Overlay", "Camera", "Teleport",
	"NPC",
}

func (o Opcode) String() string {
	if o < opCount {
		return opNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Valid reports whether o is a known opcode.
func (o Opcode) Valid() bool { return o < opCount }

// Sub-opcodes carried in the "opcode" field of the payload.

type MovementOp uint8

const (
	MoveStarted MovementOp = iota
	MoveStep
	MoveStop
	MoveEntity
	MoveOrientate
	MoveMove
	MoveFollow
	MoveStunned
)

type CombatOp uint8

const (
	CombatInitiate CombatOp = iota
	CombatHit
	CombatFinish
	CombatSync
)

type RegionOp uint8

const (
	RegionRender RegionOp = iota
	RegionModify
)

type ProjectileOp uint8

const (
	ProjectileCreate ProjectileOp = iota
	ProjectileImpact
)

type TargetOp uint8

const (
	TargetTalk TargetOp = iota
	TargetAttack
	TargetNone
	TargetObject
)

type NotificationOp uint8

const (
	NotifyText NotificationOp = iota
	NotifyPopup
)

type InventoryOp uint8

const (
	InventoryBatch InventoryOp = iota
	InventoryAdd
	InventoryRemove
)

type OverlayOp uint8

const (
	OverlaySet OverlayOp = iota
	OverlayRemove
)
