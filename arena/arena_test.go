package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsCapacityToPow2(t *testing.T) {
	assert.Equal(t, 1, New(0).Cap())
	assert.Equal(t, 8, New(5).Cap())
	assert.Equal(t, 64, New(64).Cap())
}

func TestPushSizeReturnsOffsets(t *testing.T) {
	a := New(16)
	assert.Equal(t, 0, a.PushSize(4))
	assert.Equal(t, 4, a.PushSize(8))
	assert.Equal(t, 12, a.Used())
	assert.Equal(t, 16, a.Cap())
}

func TestGrowthDoublesToNextPow2(t *testing.T) {
	a := New(4)
	a.PushSize(3)
	a.PushSize(10)
	assert.Equal(t, 16, a.Cap())
	a.PushSize(100)
	assert.Equal(t, 128, a.Cap())
}

func TestGrowthPreservesData(t *testing.T) {
	a := New(1)
	var offs []int
	total := 0
	for i := 0; i < 100; i++ {
		off := a.PushSize(4)
		a.PutUint32(off, uint32(i*7))
		offs = append(offs, off)
		total += 4
	}
	require.Equal(t, total, a.Used())
	for i, off := range offs {
		assert.Equal(t, uint32(i*7), a.Uint32At(off), "value %d", i)
	}
}

func TestReserveGrowsOnce(t *testing.T) {
	a := New(4)
	a.PushSize(2)
	a.Reserve(30)
	assert.Equal(t, 32, a.Cap())
	assert.Equal(t, 2, a.Used())
	a.PushSize(30)
	assert.Equal(t, 32, a.Cap())
}

func TestResetKeepsCapacity(t *testing.T) {
	a := New(8)
	a.PushSize(100)
	c := a.Cap()
	a.Reset()
	assert.Equal(t, 0, a.Used())
	assert.Equal(t, c, a.Cap())
	assert.Equal(t, 0, a.PushSize(1))
}

func TestPushZeroedClearsReusedBytes(t *testing.T) {
	a := New(8)
	off := a.PushSize(4)
	a.PutUint32(off, 0xdeadbeef)
	a.Reset()
	off = a.PushZeroed(4)
	assert.Equal(t, uint32(0), a.Uint32At(off))
}

func TestFloat32RoundTrip(t *testing.T) {
	a := New(0)
	off := a.PushFloat32s(1.5, -2, 3.25)
	assert.Equal(t, float32(1.5), a.Float32At(off))
	assert.Equal(t, float32(-2), a.Float32At(off+4))
	assert.Equal(t, float32(3.25), a.Float32At(off+8))
	assert.Len(t, a.All(), 12)
}

func TestSlabPushAndTruncate(t *testing.T) {
	s := NewSlab[string](2)
	assert.Equal(t, 0, s.Push("a"))
	assert.Equal(t, 1, s.Push("b"))
	assert.Equal(t, 2, s.Push("c"))
	assert.Equal(t, 4, s.Cap())
	assert.Equal(t, "b", *s.At(1))

	s.Truncate(1)
	assert.Equal(t, []string{"a"}, s.Slice())
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 4, s.Cap())
}

func BenchmarkPushSize(b *testing.B) {
	a := New(1024)
	for i := 0; i < b.N; i++ {
		if a.Used() > 1<<20 {
			a.Reset()
		}
		a.PushSize(48)
	}
}
