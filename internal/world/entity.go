package world

// Entity is anything placed on the map.
type Entity interface {
	Core() *Base
	SpawnInfo() SpawnInfo
}

// SpawnInfo is what a client needs to draw an entity.
type SpawnInfo struct {
	Type          Kind        `json:"type"`
	Instance      Instance    `json:"instance"`
	Key           string      `json:"key"`
	Name          string      `json:"name,omitempty"`
	X             int         `json:"x"`
	Y             int         `json:"y"`
	Orientation   Orientation `json:"orientation,omitempty"`
	HitPoints     int         `json:"hitPoints,omitempty"`
	MaxHitPoints  int         `json:"maxHitPoints,omitempty"`
	Level         int         `json:"level,omitempty"`
	AttackRange   int         `json:"attackRange,omitempty"`
	MovementSpeed int         `json:"movementSpeed,omitempty"`
	Count         int         `json:"count,omitempty"`
	Owner         Instance    `json:"owner,omitempty"`
	Target        Instance    `json:"target,omitempty"`
	Damage        int         `json:"damage,omitempty"`
	PVP           bool        `json:"pvp,omitempty"`
}

// Base holds the state shared by every entity. Position changes go through
// SetPosition so move hooks always run.
type Base struct {
	self     Entity
	instance Instance
	kind     Kind
	key      string
	name     string

	x, y        int
	oldX, oldY  int
	orientation Orientation

	region        RegionID
	recentRegions []RegionID

	invisibleTo    map[Instance]struct{}
	invisibleKinds map[string]struct{}

	attached  bool
	moveHooks []func(Entity)
}

func (b *Base) bind(self Entity, id Instance, kind Kind, key string, x, y int) {
	b.self = self
	b.instance = id
	b.kind = kind
	b.key = key
	b.name = key
	b.x, b.y = x, y
	b.oldX, b.oldY = x, y
	b.region = NoRegion
}

func (b *Base) Core() *Base { return b }

func (b *Base) Instance() Instance { return b.instance }
func (b *Base) Kind() Kind         { return b.kind }
func (b *Base) Key() string        { return b.key }
func (b *Base) Name() string       { return b.name }
func (b *Base) SetName(n string)   { b.name = n }

func (b *Base) X() int { return b.x }
func (b *Base) Y() int { return b.y }

func (b *Base) Position() (int, int)    { return b.x, b.y }
func (b *Base) OldPosition() (int, int) { return b.oldX, b.oldY }

func (b *Base) Orientation() Orientation     { return b.orientation }
func (b *Base) SetOrientation(o Orientation) { b.orientation = o }

// OnMove registers a hook run after every SetPosition, in registration order.
func (b *Base) OnMove(fn func(Entity)) {
	b.moveHooks = append(b.moveHooks, fn)
}

// SetPosition is the only way to move an entity.
func (b *Base) SetPosition(x, y int) {
	b.oldX, b.oldY = b.x, b.y
	b.x, b.y = x, y
	for _, h := range b.moveHooks {
		h(b.self)
	}
}

// Region is the entity's home zone.
func (b *Base) Region() RegionID { return b.region }

// SetRegion is reserved for the region bridge.
func (b *Base) SetRegion(id RegionID) { b.region = id }

func (b *Base) RecentRegions() []RegionID       { return b.recentRegions }
func (b *Base) SetRecentRegions(ids []RegionID) { b.recentRegions = ids }
func (b *Base) ClearRecentRegions()             { b.recentRegions = nil }

// Attached reports whether the entity is registered with the world.
func (b *Base) Attached() bool { return b.attached }

func (b *Base) SetAttached(v bool) { b.attached = v }

func (b *Base) IsPlayer() bool { return b.kind == KindPlayer }
func (b *Base) IsMob() bool    { return b.kind == KindMob }

// Distance is the Chebyshev distance between two entities.
func (b *Base) Distance(o Entity) int {
	ob := o.Core()
	return b.DistanceTo(ob.x, ob.y)
}

func (b *Base) DistanceTo(x, y int) int {
	dx, dy := abs(b.x-x), abs(b.y-y)
	if dx > dy {
		return dx
	}
	return dy
}

// IsAdjacent includes diagonals and the same tile.
func (b *Base) IsAdjacent(o Entity) bool {
	return b.Distance(o) < 2
}

// IsNonDiagonal is adjacency restricted to a shared row or column.
func (b *Base) IsNonDiagonal(o Entity) bool {
	ob := o.Core()
	return b.IsAdjacent(o) && (b.x == ob.x || b.y == ob.y)
}

func (b *Base) IsNear(o Entity, radius int) bool {
	return b.Distance(o) <= radius
}

// SetInvisibleTo hides this entity from one viewer.
func (b *Base) SetInvisibleTo(viewer Instance) {
	if b.invisibleTo == nil {
		b.invisibleTo = make(map[Instance]struct{})
	}
	b.invisibleTo[viewer] = struct{}{}
}

func (b *Base) ClearInvisibleTo(viewer Instance) {
	delete(b.invisibleTo, viewer)
}

// SetInvisibleToKind hides this entity from every entity of a template key.
func (b *Base) SetInvisibleToKind(key string) {
	if b.invisibleKinds == nil {
		b.invisibleKinds = make(map[string]struct{})
	}
	b.invisibleKinds[key] = struct{}{}
}

func (b *Base) ClearInvisibleToKind(key string) {
	delete(b.invisibleKinds, key)
}

// IsInvisibleTo reports whether viewer must not see this entity.
func (b *Base) IsInvisibleTo(viewer Entity) bool {
	vb := viewer.Core()
	if _, ok := b.invisibleTo[vb.instance]; ok {
		return true
	}
	_, ok := b.invisibleKinds[vb.key]
	return ok
}

func (b *Base) SpawnInfo() SpawnInfo {
	return SpawnInfo{
		Type:        b.kind,
		Instance:    b.instance,
		Key:         b.key,
		Name:        b.name,
		X:           b.x,
		Y:           b.y,
		Orientation: b.orientation,
	}
}
