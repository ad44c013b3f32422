package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_AddRemove(t *testing.T) {
	inv := NewInventory(3)

	require.True(t, inv.Add("gold", 10, true))
	require.True(t, inv.Add("gold", 5, true))
	assert.Equal(t, 15, inv.Count("gold"))
	assert.Equal(t, 2, inv.Free())

	assert.False(t, inv.Add("sword", 3, false), "does not fit")
	assert.Equal(t, 2, inv.Free(), "nothing added on failure")
	require.True(t, inv.Add("sword", 2, false))
	assert.Equal(t, 0, inv.Free())
	assert.False(t, inv.Add("potion", 1, true))

	assert.False(t, inv.Remove("sword", 3))
	assert.True(t, inv.Remove("sword", 2))
	assert.False(t, inv.Has("sword"))
	assert.True(t, inv.Remove("gold", 15))
	assert.Equal(t, 3, inv.Free())
}

func TestInventory_LoadTruncates(t *testing.T) {
	inv := NewInventory(2)
	inv.Load([]Slot{{"a", 1}, {"b", 2}, {"c", 3}})
	assert.Equal(t, []Slot{{"a", 1}, {"b", 2}}, inv.Slots())
}

func TestPoison(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	p := NewPoison(start, 10*time.Second, 3)

	assert.False(t, p.Expired(start.Add(10*time.Second)), "expires only after duration")
	assert.True(t, p.Expired(start.Add(10*time.Second+time.Millisecond)))
	assert.Equal(t, 4*time.Second, p.Remaining(start.Add(6*time.Second)))

	encoded := p.String()
	assert.Equal(t, "1700000000000:10000:3", encoded)
	back, err := ParsePoison(encoded)
	require.NoError(t, err)
	assert.True(t, back.Start.Equal(p.Start))
	assert.Equal(t, p.Duration, back.Duration)
	assert.Equal(t, p.TickDamage, back.TickDamage)

	none, err := ParsePoison("")
	assert.NoError(t, err)
	assert.Nil(t, none)

	_, err = ParsePoison("1:2")
	assert.Error(t, err)
	_, err = ParsePoison("a:2:3")
	assert.Error(t, err)
}

func TestPlayer_Experience(t *testing.T) {
	p := NewPlayer(1, 1, "bob", "Bob", 5)
	assert.Equal(t, 1, p.Level())
	assert.False(t, p.AddExperience(50))
	assert.True(t, p.AddExperience(40), "crosses 83")
	assert.Equal(t, 2, p.Level())
	assert.True(t, p.Dirty())
	assert.False(t, p.AddExperience(0))
}

func TestPlayer_SnapshotRestore(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := NewPlayer(1, 1, "carol", "Carol", 5)
	p.Base.x, p.Base.y = 12, 30
	p.AddExperience(200)
	p.SetHitPoints(40)
	p.Inventory().Add("gold", 7, true)
	p.UnlockDoor("cave")
	p.AddKill()
	p.SetPoison(NewPoison(now, time.Minute, 2), 0)

	snap := p.Snapshot()

	q := NewPlayer(2, 2, "carol", "", 5)
	require.NoError(t, q.Restore(snap, now.Add(time.Second)))
	assert.Equal(t, "Carol", q.Name())
	x, y := q.Position()
	assert.Equal(t, 12, x)
	assert.Equal(t, 30, y)
	assert.Equal(t, p.Level(), q.Level())
	assert.Equal(t, 40, q.HitPoints())
	assert.Equal(t, 7, q.Inventory().Count("gold"))
	assert.True(t, q.HasDoor("cave"))
	assert.Equal(t, 1, q.Kills())
	require.NotNil(t, q.Poison())
	assert.Equal(t, 2, q.Poison().TickDamage)

	r := NewPlayer(3, 3, "carol", "", 5)
	require.NoError(t, r.Restore(snap, now.Add(2*time.Minute)))
	assert.Nil(t, r.Poison(), "expired poison is dropped")
}

func TestPlayer_Movement(t *testing.T) {
	now := time.Unix(100, 0)
	p := NewPlayer(1, 1, "dan", "Dan", 5)

	_, ok := p.EndMovement(now)
	assert.False(t, ok)

	p.StartMovement(now)
	assert.True(t, p.Moving())
	started, ok := p.EndMovement(now.Add(time.Second))
	assert.True(t, ok)
	assert.Equal(t, now, started)
	assert.False(t, p.Moving())
	assert.Equal(t, now.Add(time.Second), p.LastMovement())
}

func TestCombatState_Attackers(t *testing.T) {
	var c CombatState
	c.AddAttacker(1)
	c.AddAttacker(2)
	c.AddAttacker(1)
	c.AddAttacker(0)
	assert.Equal(t, 2, c.AttackerCount())

	list := c.Attackers()
	assert.True(t, c.RemoveAttacker(1))
	assert.False(t, c.RemoveAttacker(1))
	assert.Len(t, list, 2, "returned slice is a copy")
	assert.Equal(t, []Instance{2}, c.Attackers())

	c.Enqueue(NewHit(HitDamage, 3))
	c.Enqueue(NewHit(HitStun, 1))
	h, ok := c.Dequeue()
	require.True(t, ok)
	assert.Equal(t, HitDamage, h.Type)
	c.ClearQueue()
	_, ok = c.Dequeue()
	assert.False(t, ok)
}
