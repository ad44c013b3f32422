package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []MobKilled
	Subscribe(b, func(ev MobKilled) { got = append(got, ev) })

	Emit(b, MobKilled{Key: "rat", Level: 1})
	b.DispatchAll()
	assert.Empty(t, got, "not visible before swap")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 1)
	assert.Equal(t, "rat", got[0].Key)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 1, "delivered once")
}

func TestBus_HandlerOrder(t *testing.T) {
	b := NewBus()
	var order []string
	Subscribe(b, func(PlayerDied) { order = append(order, "first") })
	Subscribe(b, func(PlayerDied) { order = append(order, "second") })
	Emit(b, PlayerDied{Name: "alice"})
	assert.Equal(t, 1, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []string{"first", "second"}, order)
}
