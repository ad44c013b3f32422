package world

import (
	"math/rand"

	"github.com/tilerealm/server/internal/data"
)

// ChestKey is the template key chests spawn with.
const ChestKey = "chest"

// Chest is an openable container that drops one of its items.
type Chest struct {
	Base
	loot   []data.Loot
	static bool
	area   int
}

func NewChest(id Instance, x, y int, loot []data.Loot) *Chest {
	c := &Chest{loot: loot, area: -1}
	c.bind(c, id, KindChest, ChestKey, x, y)
	return c
}

func (c *Chest) Loot() []data.Loot { return c.loot }

func (c *Chest) IsStatic() bool   { return c.static }
func (c *Chest) SetStatic(v bool) { c.static = v }
func (c *Chest) Area() int        { return c.area }
func (c *Chest) SetArea(a int)    { c.area = a }

// Roll picks one loot entry at random and keeps it with its probability out
// of 100.
func (c *Chest) Roll(rng *rand.Rand) (data.Loot, bool) {
	if len(c.loot) == 0 {
		return data.Loot{}, false
	}
	l := c.loot[rng.Intn(len(c.loot))]
	if rng.Intn(100) >= l.Probability {
		return data.Loot{}, false
	}
	return l, true
}
