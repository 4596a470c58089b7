// Package arena provides growable bump allocators used as the backing store
// for handle allocators and sprite batch buffers.
//
// An Arena hands out byte offsets, never pointers. Growth reallocates the
// backing slice, so a []byte returned by Bytes is only valid until the next
// PushSize that grows the arena; offsets stay valid across growth.
package arena

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Arena is a flat byte buffer with monotonic bump allocation. There is no
// per-allocation free, only Reset.
type Arena struct {
	buf  []byte
	used int
}

// New returns an arena with at least capacity bytes reserved.
func New(capacity int) *Arena {
	if capacity < 0 {
		panic("smol: negative arena capacity")
	}
	return &Arena{buf: make([]byte, nextPow2(capacity))}
}

// PushSize reserves n bytes and returns the offset of the first one. The
// reserved bytes are not guaranteed to be zero after a Reset.
func (a *Arena) PushSize(n int) int {
	if n < 0 {
		panic("smol: negative arena push")
	}
	a.growFor(n)
	off := a.used
	a.used += n
	return off
}

// PushZeroed reserves n bytes, clears them, and returns their offset.
func (a *Arena) PushZeroed(n int) int {
	off := a.PushSize(n)
	clear(a.buf[off : off+n])
	return off
}

// Bytes returns the n bytes starting at off.
func (a *Arena) Bytes(off, n int) []byte {
	return a.buf[off : off+n : off+n]
}

// All returns the used prefix of the arena.
func (a *Arena) All() []byte {
	return a.buf[:a.used:a.used]
}

// Used returns the number of bytes handed out since the last Reset.
func (a *Arena) Used() int { return a.used }

// Cap returns the size of the backing allocation.
func (a *Arena) Cap() int { return len(a.buf) }

// Reset rewinds the arena without releasing its backing storage.
func (a *Arena) Reset() { a.used = 0 }

// Reserve makes sure at least n more bytes fit without growing again.
func (a *Arena) Reserve(n int) { a.growFor(n) }

// growFor doubles the backing buffer until n more bytes fit.
func (a *Arena) growFor(n int) {
	need := a.used + n
	if need <= len(a.buf) {
		return
	}
	buf := make([]byte, nextPow2(need))
	copy(buf, a.buf[:a.used])
	a.buf = buf
}

// PutFloat32 writes v little-endian at off.
func (a *Arena) PutFloat32(off int, v float32) {
	binary.LittleEndian.PutUint32(a.buf[off:], math.Float32bits(v))
}

// Float32At reads a little-endian float32 at off.
func (a *Arena) Float32At(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(a.buf[off:]))
}

// PutUint32 writes v little-endian at off.
func (a *Arena) PutUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(a.buf[off:], v)
}

// Uint32At reads a little-endian uint32 at off.
func (a *Arena) Uint32At(off int) uint32 {
	return binary.LittleEndian.Uint32(a.buf[off:])
}

// PushFloat32s reserves room for vs and writes them, returning the offset.
func (a *Arena) PushFloat32s(vs ...float32) int {
	off := a.PushSize(len(vs) * 4)
	for i, v := range vs {
		a.PutFloat32(off+i*4, v)
	}
	return off
}

// nextPow2 returns the smallest power of two >= n (1 for n <= 1).
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
