// Package handle implements generational handles over packed, swap-removed
// resource arrays.
//
// A Handle is a {slot index, generation} pair. The allocator keeps one slot
// per resource ever stored; removing a resource bumps its slot generation, so
// every copy of the old handle stops resolving, and moves the last live
// resource into the hole so the resource array stays contiguous.
package handle

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/phanxgames/smol/arena"
)

// Handle references a T stored in an Allocator[T]. It does not own the
// resource. The zero value and Invalid() are never valid.
type Handle[T any] struct {
	Index      int32
	Generation int32
}

// Invalid returns the sentinel handle {-1, -1}.
func Invalid[T any]() Handle[T] {
	return Handle[T]{Index: -1, Generation: -1}
}

// IsNil reports whether h is the sentinel or the zero value. A non-nil handle
// may still be stale; use Allocator.Valid to check.
func (h Handle[T]) IsNil() bool {
	return h.Index < 0 || h.Generation <= 0
}

// String formats h as handle(index:generation).
func (h Handle[T]) String() string {
	if h.IsNil() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d:%d)", h.Index, h.Generation)
}

// slot is either occupied (ref is the resource index), free (ref is the
// next free slot, -1 at the end of the list) or retired (gen 0).
type slot struct {
	ref int32
	gen int32
}

const (
	firstGeneration = 1
	// retiredGeneration marks a slot whose generations are exhausted. It is
	// never reused, so no handle can alias a later resource.
	retiredGeneration = 0
)

// Allocator stores values of T in a packed array addressed through
// generational handles. Not safe for concurrent use.
type Allocator[T any] struct {
	name string
	log  *zap.Logger

	slots     *arena.Slab[slot]
	resources *arena.Slab[T]
	owners    *arena.Slab[int32] // resource index -> slot index

	freeHead  int32
	freeCount int
}

// Option configures an Allocator.
type Option func(*options)

type options struct {
	name string
	log  *zap.Logger
}

// WithName sets the resource kind name used in log messages.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used for invalid-handle warnings.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// New returns an allocator with room for capacity resources before growing.
func New[T any](capacity int, opts ...Option) *Allocator[T] {
	o := options{name: fmt.Sprintf("%T", *new(T))}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return &Allocator[T]{
		name:      o.name,
		log:       o.log,
		slots:     arena.NewSlab[slot](capacity),
		resources: arena.NewSlab[T](capacity),
		owners:    arena.NewSlab[int32](capacity),
		freeHead:  -1,
	}
}

// Name returns the resource kind name.
func (a *Allocator[T]) Name() string { return a.name }

// Reserve allocates a zero-valued resource and returns its handle and a
// pointer to it. The pointer is invalidated by the next Reserve, Add or Remove.
func (a *Allocator[T]) Reserve() (Handle[T], *T) {
	var si int32
	if a.freeHead >= 0 {
		si = a.freeHead
		a.freeHead = a.slots.At(int(si)).ref
		a.freeCount--
	} else {
		si = int32(a.slots.Push(slot{gen: firstGeneration}))
	}

	ri := a.resources.PushZero()
	a.owners.Push(si)

	s := a.slots.At(int(si))
	s.ref = int32(ri)
	return Handle[T]{Index: si, Generation: s.gen}, a.resources.At(ri)
}

// Add stores v and returns its handle.
func (a *Allocator[T]) Add(v T) Handle[T] {
	h, p := a.Reserve()
	*p = v
	return h
}

// Valid reports whether h currently resolves to a resource.
func (a *Allocator[T]) Valid(h Handle[T]) bool {
	if h.Generation < firstGeneration || h.Index < 0 || int(h.Index) >= a.slots.Len() {
		return false
	}
	return a.slots.At(int(h.Index)).gen == h.Generation
}

// Lookup returns the resource for h, or nil if h is stale or out of range.
func (a *Allocator[T]) Lookup(h Handle[T]) *T {
	if !a.Valid(h) {
		return nil
	}
	return a.resources.At(int(a.slots.At(int(h.Index)).ref))
}

// IndexOf returns the packed index of h's resource, or -1 if h is invalid.
func (a *Allocator[T]) IndexOf(h Handle[T]) int {
	if !a.Valid(h) {
		return -1
	}
	return int(a.slots.At(int(h.Index)).ref)
}

// Remove deletes the resource for h. The last live resource moves into the
// freed position and its slot is updated to follow it. Removing an invalid
// handle logs a warning and returns false.
func (a *Allocator[T]) Remove(h Handle[T]) bool {
	if !a.Valid(h) {
		a.log.Warn("remove with invalid handle",
			zap.String("resource", a.name),
			zap.Int32("index", h.Index),
			zap.Int32("generation", h.Generation))
		return false
	}

	s := a.slots.At(int(h.Index))
	ri := int(s.ref)
	last := a.resources.Len() - 1
	if ri != last {
		*a.resources.At(ri) = *a.resources.At(last)
		moved := *a.owners.At(last)
		*a.owners.At(ri) = moved
		a.slots.At(int(moved)).ref = int32(ri)
	}
	a.resources.Truncate(last)
	a.owners.Truncate(last)

	if !s.bump() {
		a.log.Debug("slot generations exhausted, retiring",
			zap.String("resource", a.name),
			zap.Int32("index", h.Index))
		return true
	}
	s.ref = a.freeHead
	a.freeHead = h.Index
	a.freeCount++
	return true
}

// Reset removes every resource. All outstanding handles become invalid;
// slots are kept so their generations never repeat.
func (a *Allocator[T]) Reset() {
	a.resources.Reset()
	a.owners.Reset()
	a.freeHead = -1
	a.freeCount = 0
	for i := a.slots.Len() - 1; i >= 0; i-- {
		s := a.slots.At(i)
		if !s.bump() {
			continue
		}
		s.ref = a.freeHead
		a.freeHead = int32(i)
		a.freeCount++
	}
}

// Count returns the number of live resources.
func (a *Allocator[T]) Count() int { return a.resources.Len() }

// FreeCount returns the number of recycled slots waiting for reuse.
func (a *Allocator[T]) FreeCount() int { return a.freeCount }

// Slice returns the packed live resources. Order is stable until the next
// Remove.
func (a *Allocator[T]) Slice() []T { return a.resources.Slice() }

// HandleAt returns the handle of the resource at packed index i.
func (a *Allocator[T]) HandleAt(i int) Handle[T] {
	si := *a.owners.At(i)
	return Handle[T]{Index: si, Generation: a.slots.At(int(si)).gen}
}

// Each calls fn for every live resource in packed order until fn returns
// false. fn must not add or remove resources.
func (a *Allocator[T]) Each(fn func(Handle[T], *T) bool) {
	for i := 0; i < a.resources.Len(); i++ {
		if !fn(a.HandleAt(i), a.resources.At(i)) {
			return
		}
	}
}

// bump advances the slot's generation. A slot at the last generation is
// retired instead and bump reports false.
func (s *slot) bump() bool {
	if s.gen == retiredGeneration || s.gen == math.MaxInt32 {
		s.gen = retiredGeneration
		s.ref = -1
		return false
	}
	s.gen++
	return true
}
