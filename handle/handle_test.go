package handle

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type foo struct {
	x, y int
}

func TestInvalidHandle(t *testing.T) {
	h := Invalid[foo]()
	assert.Equal(t, int32(-1), h.Index)
	assert.Equal(t, int32(-1), h.Generation)
	assert.True(t, h.IsNil())
	assert.True(t, Handle[foo]{}.IsNil())

	a := New[foo](4)
	assert.Nil(t, a.Lookup(h))
	assert.Nil(t, a.Lookup(Handle[foo]{}))
}

func TestAddLookup(t *testing.T) {
	a := New[foo](2)
	h1 := a.Add(foo{1, 2})
	h2 := a.Add(foo{3, 4})
	h3 := a.Add(foo{5, 6})

	require.NotNil(t, a.Lookup(h1))
	assert.Equal(t, foo{1, 2}, *a.Lookup(h1))
	assert.Equal(t, foo{3, 4}, *a.Lookup(h2))
	assert.Equal(t, foo{5, 6}, *a.Lookup(h3))
	assert.Equal(t, 3, a.Count())
	assert.False(t, h1 == h2)
}

func TestReserveZeroesRecycledResource(t *testing.T) {
	a := New[foo](1)
	h := a.Add(foo{9, 9})
	a.Remove(h)
	_, p := a.Reserve()
	assert.Equal(t, foo{}, *p)
}

func TestCapacityEightRemoveSecond(t *testing.T) {
	a := New[foo](8)
	var hs []Handle[foo]
	for i := 0; i < 8; i++ {
		hs = append(hs, a.Add(foo{i, i * 10}))
	}
	require.True(t, a.Remove(hs[1]))

	got := a.Lookup(hs[4])
	require.NotNil(t, got)
	assert.Equal(t, foo{4, 40}, *got)
	assert.Equal(t, 7, a.Count())
	assert.Nil(t, a.Lookup(hs[1]))
}

func TestSwapRemoveMatrix(t *testing.T) {
	cases := []struct {
		name   string
		remove int
	}{
		{"first", 0},
		{"middle", 2},
		{"last", 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := New[foo](4)
			var hs []Handle[foo]
			for i := 0; i < 5; i++ {
				hs = append(hs, a.Add(foo{i, -i}))
			}
			require.True(t, a.Remove(hs[c.remove]))
			assert.Equal(t, 4, a.Count())

			for i, h := range hs {
				if i == c.remove {
					assert.Nil(t, a.Lookup(h))
					continue
				}
				require.NotNil(t, a.Lookup(h), "handle %d", i)
				assert.Equal(t, foo{i, -i}, *a.Lookup(h))
			}

			seen := map[int]bool{}
			for _, v := range a.Slice() {
				seen[v.x] = true
			}
			assert.Len(t, seen, 4)
			assert.False(t, seen[c.remove])
		})
	}
}

func TestHandleAtMatchesPackedOrder(t *testing.T) {
	a := New[foo](4)
	h0 := a.Add(foo{0, 0})
	a.Add(foo{1, 0})
	h2 := a.Add(foo{2, 0})
	a.Remove(h0)

	// h2 was last and moved into index 0.
	assert.Equal(t, h2, a.HandleAt(0))
	for i := 0; i < a.Count(); i++ {
		assert.Equal(t, &a.Slice()[i], a.Lookup(a.HandleAt(i)))
	}
}

func TestGenerationMonotonic(t *testing.T) {
	a := New[foo](1)
	h := a.Add(foo{})
	seen := []Handle[foo]{h}
	for i := 0; i < 10; i++ {
		a.Remove(h)
		h = a.Add(foo{i, i})
		prev := seen[len(seen)-1]
		assert.Equal(t, prev.Index, h.Index, "slot reused")
		assert.Greater(t, h.Generation, prev.Generation)
		for _, old := range seen {
			assert.Nil(t, a.Lookup(old))
		}
		seen = append(seen, h)
	}
}

func TestExhaustedSlotIsRetired(t *testing.T) {
	a := New[foo](2)
	h := a.Add(foo{x: 1})
	a.slots.At(int(h.Index)).gen = math.MaxInt32
	last := Handle[foo]{Index: h.Index, Generation: math.MaxInt32}
	require.NotNil(t, a.Lookup(last))

	require.True(t, a.Remove(last))
	assert.Equal(t, 0, a.FreeCount(), "exhausted slot must not be recycled")

	first := Handle[foo]{Index: h.Index, Generation: firstGeneration}
	for i := 0; i < 3; i++ {
		nh := a.Add(foo{x: 3})
		assert.NotEqual(t, h.Index, nh.Index)
		assert.Nil(t, a.Lookup(first))
		assert.Nil(t, a.Lookup(last))
	}
	assert.Nil(t, a.Lookup(Handle[foo]{Index: h.Index, Generation: 0}))
}

func TestResetRetiresExhaustedSlots(t *testing.T) {
	a := New[foo](2)
	h0 := a.Add(foo{})
	a.Add(foo{})
	a.slots.At(int(h0.Index)).gen = math.MaxInt32

	a.Reset()
	assert.Equal(t, 1, a.FreeCount())
	nh := a.Add(foo{})
	assert.NotEqual(t, h0.Index, nh.Index)
}

func TestFreeListIsLIFO(t *testing.T) {
	a := New[foo](4)
	h0 := a.Add(foo{})
	h1 := a.Add(foo{})
	h2 := a.Add(foo{})
	a.Remove(h0)
	a.Remove(h2)
	assert.Equal(t, 2, a.FreeCount())

	n1 := a.Add(foo{})
	n2 := a.Add(foo{})
	assert.Equal(t, h2.Index, n1.Index)
	assert.Equal(t, h0.Index, n2.Index)
	assert.Equal(t, 0, a.FreeCount())
	assert.NotNil(t, a.Lookup(h1))
}

func TestRemoveInvalidWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := New[foo](2, WithName("foo"), WithLogger(zap.New(core)))

	h := a.Add(foo{})
	require.True(t, a.Remove(h))
	assert.False(t, a.Remove(h))
	assert.False(t, a.Remove(Invalid[foo]()))
	assert.False(t, a.Remove(Handle[foo]{Index: 99, Generation: 1}))

	require.Equal(t, 3, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "remove with invalid handle", entry.Message)
	assert.Equal(t, "foo", entry.ContextMap()["resource"])
}

func TestResetInvalidatesEverything(t *testing.T) {
	a := New[foo](4)
	var hs []Handle[foo]
	for i := 0; i < 4; i++ {
		hs = append(hs, a.Add(foo{i, i}))
	}
	a.Reset()
	assert.Equal(t, 0, a.Count())
	for _, h := range hs {
		assert.Nil(t, a.Lookup(h))
	}

	n := a.Add(foo{7, 7})
	assert.Equal(t, int32(0), n.Index)
	assert.NotEqual(t, hs[0], n)
	assert.Nil(t, a.Lookup(hs[0]))
}

func TestEachStopsEarly(t *testing.T) {
	a := New[foo](4)
	for i := 0; i < 4; i++ {
		a.Add(foo{i, 0})
	}
	visited := 0
	a.Each(func(h Handle[foo], v *foo) bool {
		visited++
		assert.Equal(t, v, a.Lookup(h))
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestRandomAddRemoveRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := New[foo](1)
	live := map[Handle[foo]]foo{}
	var dead []Handle[foo]

	for step := 0; step < 2000; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			v := foo{step, rng.Int()}
			live[a.Add(v)] = v
			continue
		}
		for h := range live {
			require.True(t, a.Remove(h))
			delete(live, h)
			dead = append(dead, h)
			break
		}
	}

	assert.Equal(t, len(live), a.Count())
	for h, v := range live {
		got := a.Lookup(h)
		require.NotNil(t, got)
		assert.Equal(t, v, *got)
	}
	for _, h := range dead {
		assert.Nil(t, a.Lookup(h))
	}
}

func BenchmarkAddRemove(b *testing.B) {
	a := New[foo](1024)
	hs := make([]Handle[foo], 0, 1024)
	for i := 0; i < b.N; i++ {
		hs = append(hs, a.Add(foo{i, i}))
		if len(hs) == cap(hs) {
			for _, h := range hs {
				a.Remove(h)
			}
			hs = hs[:0]
		}
	}
}

func TestIndexOfFollowsSwapRemove(t *testing.T) {
	a := New[foo](4)
	h0 := a.Add(foo{0, 0})
	h1 := a.Add(foo{1, 0})
	h2 := a.Add(foo{2, 0})
	assert.Equal(t, 2, a.IndexOf(h2))

	a.Remove(h0)
	assert.Equal(t, -1, a.IndexOf(h0))
	assert.Equal(t, 0, a.IndexOf(h2))
	assert.Equal(t, 1, a.IndexOf(h1))
}
