package ecs

import "strconv"

// ID is a runtime instance handle. The low 32 bits are a slot index, the high
// 32 bits a generation that is bumped when the slot is released, so a stale
// handle to a destroyed entity never resolves to its successor.
type ID uint64

func NewID(index, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }
func (id ID) IsZero() bool       { return id == 0 }

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Pool hands out IDs from a free list. Slot 0 is reserved so the zero ID can
// mean "no entity".
type Pool struct {
	generations []uint32
	free        []uint32
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 1, 1024),
		free:        make([]uint32, 0, 256),
	}
}

func (p *Pool) Create() ID {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return NewID(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return NewID(idx, 1)
}

func (p *Pool) Alive(id ID) bool {
	idx := id.Index()
	if idx == 0 || int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Release invalidates id and returns its slot to the free list. Releasing a
// stale id is a no-op.
func (p *Pool) Release(id ID) {
	if !p.Alive(id) {
		return
	}
	idx := id.Index()
	p.generations[idx]++
	p.free = append(p.free, idx)
}
