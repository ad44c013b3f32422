package ecs

import "sort"

// Remover is implemented by every Store so a Registry can drop an id from all
// kind-specific indices at once.
type Remover interface {
	Remove(id ID)
}

// Store is a typed map from instance to component pointer.
type Store[T any] struct {
	data map[ID]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{data: make(map[ID]*T, 256)}
}

func (s *Store[T]) Set(id ID, c *T) { s.data[id] = c }

func (s *Store[T]) Get(id ID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id ID) { delete(s.data, id) }

func (s *Store[T]) Has(id ID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int { return len(s.data) }

// Each visits entries in unspecified order. fn must not mutate the store.
func (s *Store[T]) Each(fn func(ID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// Sorted returns the components ordered by id, for callers that iterate while
// mutating or need a stable order.
func (s *Store[T]) Sorted() []*T {
	ids := make([]ID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*T, len(ids))
	for i, id := range ids {
		out[i] = s.data[id]
	}
	return out
}
