package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWheel() (*Wheel, *ManualClock) {
	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	return NewWheel(clock), clock
}

func TestWheel_AfterFiresOnce(t *testing.T) {
	w, clock := newTestWheel()
	count := 0
	h := w.After(100*time.Millisecond, func() { count++ })

	clock.Advance(99 * time.Millisecond)
	assert.Equal(t, 0, w.Advance())
	assert.True(t, w.Active(h))

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, w.Advance())
	assert.Equal(t, 1, count)
	assert.False(t, w.Active(h))

	clock.Advance(time.Second)
	w.Advance()
	assert.Equal(t, 1, count)
}

func TestWheel_EveryKeepsCadence(t *testing.T) {
	w, clock := newTestWheel()
	var fires []time.Time
	w.Every(400*time.Millisecond, func() { fires = append(fires, clock.Now()) })

	for i := 0; i < 40; i++ {
		clock.Advance(50 * time.Millisecond)
		w.Advance()
	}
	require.Len(t, fires, 5)
	for i := 1; i < len(fires); i++ {
		assert.Equal(t, 400*time.Millisecond, fires[i].Sub(fires[i-1]))
	}
}

func TestWheel_StopFromInsideCallback(t *testing.T) {
	w, clock := newTestWheel()
	count := 0
	var h Handle
	h = w.Every(10*time.Millisecond, func() {
		count++
		w.Stop(h)
	})
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Millisecond)
		w.Advance()
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, w.Len())
}

func TestWheel_TiesFireInRegistrationOrder(t *testing.T) {
	w, clock := newTestWheel()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		w.After(time.Second, func() { order = append(order, i) })
	}
	clock.Advance(time.Second)
	w.Advance()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWheel_StopUnknownHandle(t *testing.T) {
	w, _ := newTestWheel()
	assert.False(t, w.Stop(0))
	assert.False(t, w.Stop(42))
}

func TestWheel_CallbackSchedulesMore(t *testing.T) {
	w, clock := newTestWheel()
	count := 0
	w.After(10*time.Millisecond, func() {
		count++
		w.After(10*time.Millisecond, func() { count++ })
	})
	clock.Advance(10 * time.Millisecond)
	w.Advance()
	assert.Equal(t, 1, count)
	clock.Advance(10 * time.Millisecond)
	w.Advance()
	assert.Equal(t, 2, count)
}
