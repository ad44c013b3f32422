package ecs

// Registry owns the id pool and every kind-specific store. Destroy removes an
// id from all of them before releasing it.
type Registry struct {
	pool   *Pool
	stores []Remover
}

func NewRegistry() *Registry {
	return &Registry{
		pool:   NewPool(),
		stores: make([]Remover, 0, 8),
	}
}

// Register adds a store to the bulk-removal list.
func (r *Registry) Register(s Remover) {
	r.stores = append(r.stores, s)
}

func (r *Registry) Create() ID       { return r.pool.Create() }
func (r *Registry) Alive(id ID) bool { return r.pool.Alive(id) }

func (r *Registry) Destroy(id ID) {
	if !r.pool.Alive(id) {
		return
	}
	for _, s := range r.stores {
		s.Remove(id)
	}
	r.pool.Release(id)
}
