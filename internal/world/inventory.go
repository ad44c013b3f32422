package world

// Slot is one inventory cell. An empty Key marks a free slot.
type Slot struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Inventory is a fixed-size list of slots.
type Inventory struct {
	slots []Slot
}

func NewInventory(size int) *Inventory {
	if size < 1 {
		size = 1
	}
	return &Inventory{slots: make([]Slot, size)}
}

func (inv *Inventory) Size() int { return len(inv.slots) }

// Free returns the number of empty slots.
func (inv *Inventory) Free() int {
	n := 0
	for _, s := range inv.slots {
		if s.Key == "" {
			n++
		}
	}
	return n
}

// Add places count of key. Stackable items merge into an existing slot;
// others take one slot per unit. Nothing is added unless everything fits.
func (inv *Inventory) Add(key string, count int, stackable bool) bool {
	if key == "" || count < 1 {
		return false
	}
	if stackable {
		for i := range inv.slots {
			if inv.slots[i].Key == key {
				inv.slots[i].Count += count
				return true
			}
		}
		for i := range inv.slots {
			if inv.slots[i].Key == "" {
				inv.slots[i] = Slot{Key: key, Count: count}
				return true
			}
		}
		return false
	}
	if inv.Free() < count {
		return false
	}
	for i := range inv.slots {
		if count == 0 {
			break
		}
		if inv.slots[i].Key == "" {
			inv.slots[i] = Slot{Key: key, Count: 1}
			count--
		}
	}
	return true
}

// Remove takes count units of key out, returning false if there are not
// enough.
func (inv *Inventory) Remove(key string, count int) bool {
	if inv.Count(key) < count {
		return false
	}
	for i := range inv.slots {
		if count == 0 {
			break
		}
		s := &inv.slots[i]
		if s.Key != key {
			continue
		}
		take := s.Count
		if take > count {
			take = count
		}
		s.Count -= take
		count -= take
		if s.Count == 0 {
			*s = Slot{}
		}
	}
	return true
}

// Count totals key across all slots.
func (inv *Inventory) Count(key string) int {
	n := 0
	for _, s := range inv.slots {
		if s.Key == key {
			n += s.Count
		}
	}
	return n
}

func (inv *Inventory) Has(key string) bool { return inv.Count(key) > 0 }

// Slots returns a copy of every slot.
func (inv *Inventory) Slots() []Slot {
	out := make([]Slot, len(inv.slots))
	copy(out, inv.slots)
	return out
}

// Load replaces the contents. Extra saved slots beyond the size are dropped.
func (inv *Inventory) Load(slots []Slot) {
	for i := range inv.slots {
		inv.slots[i] = Slot{}
	}
	copy(inv.slots, slots)
}
