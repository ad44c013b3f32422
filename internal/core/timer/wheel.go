package timer

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

type entry struct {
	id    Handle
	at    time.Time
	every time.Duration // 0 = one-shot
	fn    func()
	index int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel is the single scheduler every entity registers its periodic work
// with (combat loops, stun and poison countdowns, respawns, despawns).
// Entries are ordered by next fire time; ties fire in registration order.
//
// Accessed only from the game loop goroutine, no locks. Callbacks run inside
// Advance and may freely schedule or stop other entries, including themselves.
type Wheel struct {
	clock Clock
	seq   uint64
	queue entryHeap
	live  map[Handle]*entry
}

func NewWheel(clock Clock) *Wheel {
	if clock == nil {
		clock = System()
	}
	return &Wheel{
		clock: clock,
		queue: make(entryHeap, 0, 256),
		live:  make(map[Handle]*entry, 256),
	}
}

// Now returns the wheel's clock reading.
func (w *Wheel) Now() time.Time { return w.clock.Now() }

// Clock exposes the time source so callers share one notion of "now".
func (w *Wheel) Clock() Clock { return w.clock }

// After runs fn once, d from now.
func (w *Wheel) After(d time.Duration, fn func()) Handle {
	return w.schedule(d, 0, fn)
}

// Every runs fn every d, first firing d from now.
func (w *Wheel) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		d = time.Millisecond
	}
	return w.schedule(d, d, fn)
}

func (w *Wheel) schedule(d, every time.Duration, fn func()) Handle {
	w.seq++
	e := &entry{
		id:    Handle(w.seq),
		at:    w.clock.Now().Add(d),
		every: every,
		fn:    fn,
	}
	heap.Push(&w.queue, e)
	w.live[e.id] = e
	return e.id
}

// Stop cancels a scheduled callback. Returns false if the handle was not
// active (already fired, already stopped, or zero).
func (w *Wheel) Stop(h Handle) bool {
	e, ok := w.live[h]
	if !ok {
		return false
	}
	delete(w.live, h)
	if e.index >= 0 {
		heap.Remove(&w.queue, e.index)
	}
	return true
}

// Active reports whether h is still scheduled.
func (w *Wheel) Active(h Handle) bool {
	_, ok := w.live[h]
	return ok
}

// Len returns the number of scheduled callbacks.
func (w *Wheel) Len() int { return len(w.live) }

// Advance fires every callback that is due at the clock's current time and
// returns how many ran. Periodic entries are re-armed before their callback
// runs so the callback may stop them.
func (w *Wheel) Advance() int {
	now := w.clock.Now()
	fired := 0
	for len(w.queue) > 0 {
		e := w.queue[0]
		if e.at.After(now) {
			break
		}
		heap.Pop(&w.queue)
		if e.every > 0 {
			next := e.at.Add(e.every)
			if !next.After(now) {
				next = now.Add(e.every)
			}
			e.at = next
			heap.Push(&w.queue, e)
		} else {
			delete(w.live, e.id)
		}
		fired++
		e.fn()
	}
	return fired
}
