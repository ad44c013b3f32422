package world

import "github.com/tilerealm/server/internal/core/timer"

// Item is an item lying on the ground.
type Item struct {
	Base
	count   int
	static  bool
	dropped bool

	blinkTimer   timer.Handle
	despawnTimer timer.Handle
}

func NewItem(id Instance, key string, x, y, count int) *Item {
	if count < 1 {
		count = 1
	}
	it := &Item{count: count}
	it.bind(it, id, KindItem, key, x, y)
	return it
}

func (i *Item) Count() int { return i.count }

// IsStatic items come from the map and respawn after pickup.
func (i *Item) IsStatic() bool   { return i.static }
func (i *Item) SetStatic(v bool) { i.static = v }

// IsDropped items came from a death or a chest and despawn on their own.
func (i *Item) IsDropped() bool   { return i.dropped }
func (i *Item) SetDropped(v bool) { i.dropped = v }

func (i *Item) SetTimers(blink, despawn timer.Handle) {
	i.blinkTimer, i.despawnTimer = blink, despawn
}

// TakeTimers clears and returns the blink and despawn handles.
func (i *Item) TakeTimers() (blink, despawn timer.Handle) {
	blink, despawn = i.blinkTimer, i.despawnTimer
	i.blinkTimer, i.despawnTimer = 0, 0
	return
}

func (i *Item) SpawnInfo() SpawnInfo {
	info := i.Base.SpawnInfo()
	info.Count = i.count
	return info
}
