package arena

// Slab is a typed growable buffer with the same power-of-two growth policy
// as Arena. It holds values that may contain Go pointers (strings, slices),
// which must not live in raw Arena bytes.
type Slab[T any] struct {
	items []T
}

// NewSlab returns a slab with room for capacity items.
func NewSlab[T any](capacity int) *Slab[T] {
	if capacity < 0 {
		panic("smol: negative slab capacity")
	}
	return &Slab[T]{items: make([]T, 0, nextPow2(capacity))}
}

// Push appends v and returns its index.
func (s *Slab[T]) Push(v T) int {
	s.growFor(1)
	s.items = append(s.items, v)
	return len(s.items) - 1
}

// PushZero appends the zero value and returns its index.
func (s *Slab[T]) PushZero() int {
	var zero T
	return s.Push(zero)
}

// At returns a pointer to item i. The pointer is invalidated by growth.
func (s *Slab[T]) At(i int) *T { return &s.items[i] }

// Len returns the number of items.
func (s *Slab[T]) Len() int { return len(s.items) }

// Cap returns the current capacity.
func (s *Slab[T]) Cap() int { return cap(s.items) }

// Slice returns the live items.
func (s *Slab[T]) Slice() []T { return s.items }

// Truncate drops items from index n on, zeroing them so the GC can reclaim
// anything they referenced.
func (s *Slab[T]) Truncate(n int) {
	clear(s.items[n:])
	s.items = s.items[:n]
}

// Reset drops every item but keeps the backing storage.
func (s *Slab[T]) Reset() { s.Truncate(0) }

func (s *Slab[T]) growFor(n int) {
	need := len(s.items) + n
	if need <= cap(s.items) {
		return
	}
	items := make([]T, len(s.items), nextPow2(need))
	copy(items, s.items)
	s.items = items
}
