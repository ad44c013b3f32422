package packet

import "github.com/tilerealm/server/internal/world"

// Message is one outbound tagged payload. Codecs serialize it as the two
// element array [op, data].
type Message struct {
	Op   Opcode
	Data any
}

type HandshakeData struct {
	Server  string `json:"server"`
	Version int    `json:"version"`
}

func Handshake(server string, version int) Message {
	return Message{OpHandshake, HandshakeData{Server: server, Version: version}}
}

type LoginData struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func LoginAccepted() Message { return Message{OpLogin, LoginData{OK: true}} }

func LoginRejected(reason string) Message {
	return Message{OpLogin, LoginData{Reason: reason}}
}

type WelcomeData struct {
	Instance     world.Instance `json:"instance"`
	Name         string         `json:"name"`
	X            int            `json:"x"`
	Y            int            `json:"y"`
	HitPoints    int            `json:"hitPoints"`
	MaxHitPoints int            `json:"maxHitPoints"`
	Level        int            `json:"level"`
	Experience   int            `json:"experience"`
	Admin        bool           `json:"admin,omitempty"`
}

func Welcome(p *world.Player) Message {
	x, y := p.Position()
	return Message{OpWelcome, WelcomeData{
		Instance:     p.Instance(),
		Name:         p.Name(),
		X:            x,
		Y:            y,
		HitPoints:    p.HitPoints(),
		MaxHitPoints: p.MaxHitPoints(),
		Level:        p.Level(),
		Experience:   p.Experience(),
		Admin:        p.IsAdmin(),
	}}
}

func Spawn(e world.Entity) Message {
	return Message{OpSpawn, e.SpawnInfo()}
}

type InstanceData struct {
	Instance world.Instance `json:"instance"`
}

func Despawn(id world.Instance) Message {
	return Message{OpDespawn, InstanceData{Instance: id}}
}

type MovementData struct {
	Opcode      MovementOp        `json:"opcode"`
	Instance    world.Instance    `json:"instance"`
	X           int               `json:"x,omitempty"`
	Y           int               `json:"y,omitempty"`
	Forced      bool              `json:"forced,omitempty"`
	Target      world.Instance    `json:"target,omitempty"`
	Orientation world.Orientation `json:"orientation,omitempty"`
	State       bool              `json:"state,omitempty"`
}

// Move tells clients an entity now stands on (x,y). Forced moves snap the
// entity without walking animation.
func Move(e world.Entity, forced bool) Message {
	b := e.Core()
	x, y := b.Position()
	return Message{OpMovement, MovementData{Opcode: MoveMove, Instance: b.Instance(), X: x, Y: y, Forced: forced}}
}

func Follow(id, target world.Instance) Message {
	return Message{OpMovement, MovementData{Opcode: MoveFollow, Instance: id, Target: target}}
}

func Stunned(id world.Instance, state bool) Message {
	return Message{OpMovement, MovementData{Opcode: MoveStunned, Instance: id, State: state}}
}

func Orientate(id world.Instance, o world.Orientation) Message {
	return Message{OpMovement, MovementData{Opcode: MoveOrientate, Instance: id, Orientation: o}}
}

type CombatData struct {
	Opcode   CombatOp       `json:"opcode"`
	Attacker world.Instance `json:"attacker"`
	Target   world.Instance `json:"target,omitempty"`
	Hit      *world.Hit     `json:"hit,omitempty"`
	X        int            `json:"x,omitempty"`
	Y        int            `json:"y,omitempty"`
}

func CombatStart(attacker, target world.Instance) Message {
	return Message{OpCombat, CombatData{Opcode: CombatInitiate, Attacker: attacker, Target: target}}
}

func CombatHitMsg(attacker, target world.Instance, hit world.Hit) Message {
	return Message{OpCombat, CombatData{Opcode: CombatHit, Attacker: attacker, Target: target, Hit: &hit}}
}

func CombatFinished(attacker, target world.Instance) Message {
	return Message{OpCombat, CombatData{Opcode: CombatFinish, Attacker: attacker, Target: target}}
}

// CombatSyncMsg corrects a client's idea of where a fighting mob stands.
func CombatSyncMsg(e world.Entity) Message {
	b := e.Core()
	x, y := b.Position()
	return Message{OpCombat, CombatData{Opcode: CombatSync, Attacker: b.Instance(), X: x, Y: y}}
}

type ProjectileData struct {
	Opcode   ProjectileOp   `json:"opcode"`
	Instance world.Instance `json:"instance"`
	Key      string         `json:"key,omitempty"`
	Owner    world.Instance `json:"owner,omitempty"`
	Target   world.Instance `json:"target,omitempty"`
	X        int            `json:"x"`
	Y        int            `json:"y"`
	DestX    int            `json:"destX"`
	DestY    int            `json:"destY"`
	Speed    int            `json:"speed,omitempty"`
	Hit      *world.Hit     `json:"hit,omitempty"`
}

func ProjectileCreated(p *world.Projectile) Message {
	x, y := p.Start()
	dx, dy := p.Destination()
	hit := p.Hit()
	return Message{OpProjectile, ProjectileData{
		Opcode:   ProjectileCreate,
		Instance: p.Instance(),
		Key:      p.Key(),
		Owner:    p.Owner(),
		Target:   p.Target(),
		X:        x,
		Y:        y,
		DestX:    dx,
		DestY:    dy,
		Speed:    p.Speed(),
		Hit:      &hit,
	}}
}

type PointsData struct {
	Instance     world.Instance `json:"instance"`
	HitPoints    int            `json:"hitPoints"`
	MaxHitPoints int            `json:"maxHitPoints"`
}

// Points reports health. Negative transient values are sent as zero.
func Points(c world.Fighter) Message {
	ch := c.Char()
	hp := ch.HitPoints()
	if hp < 0 {
		hp = 0
	}
	return Message{OpPoints, PointsData{Instance: ch.Instance(), HitPoints: hp, MaxHitPoints: ch.MaxHitPoints()}}
}

type ExperienceData struct {
	Instance   world.Instance `json:"instance"`
	Amount     int            `json:"amount"`
	Experience int            `json:"experience"`
	Level      int            `json:"level"`
	LevelUp    bool           `json:"levelUp,omitempty"`
}

func Experience(p *world.Player, amount int, levelUp bool) Message {
	return Message{OpExperience, ExperienceData{
		Instance:   p.Instance(),
		Amount:     amount,
		Experience: p.Experience(),
		Level:      p.Level(),
		LevelUp:    levelUp,
	}}
}

func Death(id world.Instance) Message {
	return Message{OpDeath, InstanceData{Instance: id}}
}

type PositionData struct {
	Instance world.Instance `json:"instance"`
	X        int            `json:"x"`
	Y        int            `json:"y"`
}

func Respawned(p *world.Player) Message {
	x, y := p.Position()
	return Message{OpRespawn, PositionData{Instance: p.Instance(), X: x, Y: y}}
}

func Teleport(e world.Entity) Message {
	b := e.Core()
	x, y := b.Position()
	return Message{OpTeleport, PositionData{Instance: b.Instance(), X: x, Y: y}}
}

// Tile is one map cell sent in a region payload.
type Tile struct {
	Index     int   `json:"index"`
	Data      []int `json:"data"`
	Collision bool  `json:"c,omitempty"`
}

type RegionData struct {
	Opcode RegionOp `json:"opcode"`
	Tiles  []Tile   `json:"tiles"`
}

func RegionRenderMsg(tiles []Tile) Message {
	return Message{OpRegion, RegionData{Opcode: RegionRender, Tiles: tiles}}
}

func RegionModifyMsg(tiles []Tile) Message {
	return Message{OpRegion, RegionData{Opcode: RegionModify, Tiles: tiles}}
}

type ChatData struct {
	Instance world.Instance `json:"instance,omitempty"`
	Name     string         `json:"name"`
	Text     string         `json:"text"`
	Colour   string         `json:"colour,omitempty"`
}

func Chat(id world.Instance, name, text, colour string) Message {
	return Message{OpChat, ChatData{Instance: id, Name: name, Text: text, Colour: colour}}
}

type NotificationData struct {
	Opcode  NotificationOp `json:"opcode"`
	Message string         `json:"message"`
}

func Notify(text string) Message {
	return Message{OpNotification, NotificationData{Opcode: NotifyText, Message: text}}
}

func Popup(text string) Message {
	return Message{OpNotification, NotificationData{Opcode: NotifyPopup, Message: text}}
}

func Blink(id world.Instance) Message {
	return Message{OpBlink, InstanceData{Instance: id}}
}

type InventoryData struct {
	Opcode InventoryOp  `json:"opcode"`
	Slots  []world.Slot `json:"slots,omitempty"`
	Key    string       `json:"key,omitempty"`
	Count  int          `json:"count,omitempty"`
}

func InventoryList(inv *world.Inventory) Message {
	return Message{OpInventory, InventoryData{Opcode: InventoryBatch, Slots: inv.Slots()}}
}

func InventoryAdded(key string, count int) Message {
	return Message{OpInventory, InventoryData{Opcode: InventoryAdd, Key: key, Count: count}}
}

func InventoryRemoved(key string, count int) Message {
	return Message{OpInventory, InventoryData{Opcode: InventoryRemove, Key: key, Count: count}}
}

type StateData struct {
	State bool `json:"state"`
}

func PVP(state bool) Message { return Message{OpPVP, StateData{State: state}} }

type AudioData struct {
	Song string `json:"song,omitempty"`
}

func Audio(song string) Message { return Message{OpAudio, AudioData{Song: song}} }

type OverlayData struct {
	Opcode   OverlayOp `json:"opcode"`
	Darkness float64   `json:"darkness,omitempty"`
	Type     string    `json:"type,omitempty"`
}

func OverlayOn(darkness float64, kind string) Message {
	return Message{OpOverlay, OverlayData{Opcode: OverlaySet, Darkness: darkness, Type: kind}}
}

func OverlayOff() Message {
	return Message{OpOverlay, OverlayData{Opcode: OverlayRemove}}
}

type CameraData struct {
	Type string `json:"type,omitempty"`
}

func Camera(kind string) Message { return Message{OpCamera, CameraData{Type: kind}} }

type NPCData struct {
	Instance world.Instance `json:"instance"`
	Text     string         `json:"text"`
}

func NPCTalk(id world.Instance, text string) Message {
	return Message{OpNPC, NPCData{Instance: id, Text: text}}
}
