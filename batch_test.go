package smol

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/phanxgames/smol/handle"
)

func newTestMaterial(t testing.TB, s *Scene, q RenderQueue, textures ...handle.Handle[Texture]) handle.Handle[Material] {
	t.Helper()
	h, err := s.CreateMaterial(MaterialDesc{Name: "test", RenderQueue: q, Textures: textures})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// newTestBatcher returns a camera-space batcher over an untextured material,
// so UVs are normalized against the default 800x600 checkerboard.
func newTestBatcher(t testing.TB, s *Scene, capacity int) handle.Handle[SpriteBatcher] {
	t.Helper()
	return s.CreateSpriteBatcher(newTestMaterial(t, s, QueueTransparent), capacity, BatchCamera)
}

func mustUpdate(t testing.TB, s *Scene) {
	t.Helper()
	if err := s.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestCreateSpriteBatcherDefaults(t *testing.T) {
	s := newTestScene(t)
	h := newTestBatcher(t, s, 0)
	b := s.Batcher(h)
	if b.Capacity() != 32 {
		t.Errorf("Capacity = %d, want configured 32", b.Capacity())
	}
	if len(b.Bytes()) != 32*SpriteSize {
		t.Errorf("len(Bytes) = %d, want %d", len(b.Bytes()), 32*SpriteSize)
	}
	if !b.Dirty() {
		t.Error("new batcher should be dirty")
	}
	if s.Renderable(b.Renderable()) == nil {
		t.Error("batcher should own a renderable")
	}
	m := s.Mesh(b.Mesh())
	if m == nil {
		t.Fatal("batcher should own a mesh")
	}
	if !m.Dynamic || m.Version() == 0 {
		t.Errorf("batcher mesh = %+v, want a dynamic mesh", m)
	}
	if err := s.UpdateMesh(b.Mesh(), MeshData{}); err != nil {
		t.Errorf("UpdateMesh on batcher mesh: %v", err)
	}
}

func TestSpriteQuadFromCorner(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	s.CreateSpriteNode(bh, Rect{X: 0, Y: 0, Width: 32, Height: 32}, 2, 2, ColorWhite, At(Vec3{1, 1, 0}))
	mustUpdate(t, s)

	b := s.Batcher(bh)
	if b.QuadCount() != 1 {
		t.Fatalf("QuadCount = %d, want 1", b.QuadCount())
	}
	pos := b.Positions()
	want := []Vec3{{1, 1, 0}, {3, 1, 0}, {3, 3, 0}, {1, 3, 0}}
	for i := range want {
		assertVec3(t, "corner", pos[i], want[i])
	}

	uv := b.UVs()
	u1, v0 := float32(32)/800, 1-float32(32)/600
	wantUV := []Vec2{{0, v0}, {u1, v0}, {u1, 1}, {0, 1}}
	for i := range wantUV {
		assertNear(t, "u", uv[i].X, wantUV[i].X)
		assertNear(t, "v", uv[i].Y, wantUV[i].Y)
	}

	for i, c := range b.Colors() {
		if c != ColorWhite {
			t.Errorf("color %d = %v, want white", i, c)
		}
	}
}

func TestSpriteIndicesPerQuad(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	for i := range 3 {
		s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, At(Vec3{X: float32(i)}))
	}
	mustUpdate(t, s)

	got := s.Batcher(bh).Indices()
	want := []uint32{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4, 8, 9, 10, 10, 11, 8}
	if len(got) != len(want) {
		t.Fatalf("len(Indices) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Indices[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSpriteCornerColors(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	h := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	red, green, blue := Color{R: 1, A: 1}, Color{G: 1, A: 1}, Color{B: 1, A: 1}
	s.Node(h).SetSpriteCornerColors(red, green, blue, ColorWhite)
	mustUpdate(t, s)

	got := s.Batcher(bh).Colors()
	want := []Color{red, green, blue, ColorWhite}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("corner %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSpriteAngleRotatesAroundCenter(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	h := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 2, 2, ColorWhite, IdentityTransform())
	s.Node(h).SetSpriteAngle(90)
	mustUpdate(t, s)

	pos := s.Batcher(bh).Positions()
	want := []Vec3{{2, 0, 0}, {2, 2, 0}, {0, 2, 0}, {0, 0, 0}}
	for i := range want {
		assertVec3(t, "corner", pos[i], want[i])
	}
}

func TestSpriteFollowsParent(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	p := emptyNode(s, At(Vec3{X: 10, Z: -2}))
	s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform().WithParent(p))
	mustUpdate(t, s)
	assertVec3(t, "bottom-left", s.Batcher(bh).Positions()[0], Vec3{10, 0, -2})

	s.Node(p).Transform().Translate(Vec3{Y: 1})
	mustUpdate(t, s)
	assertVec3(t, "bottom-left", s.Batcher(bh).Positions()[0], Vec3{10, 1, -2})
}

func TestRebuildIsByteIdentical(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 8)
	var hs []handle.Handle[Node]
	for i := range 5 {
		hs = append(hs, s.CreateSpriteNode(bh, Rect{X: float32(i), Width: 4, Height: 4}, 1, 2, ColorWhite,
			NewTransform(Vec3{X: float32(i)}, Vec3{Z: float32(i * 10)}, Vec3{1, 1, 1})))
	}
	mustUpdate(t, s)
	before := bytes.Clone(s.Batcher(bh).Bytes())

	s.Node(hs[2]).SetSpriteColor(ColorWhite)
	mustUpdate(t, s)
	if s.Stats().Rebuilt != 1 {
		t.Fatalf("Rebuilt = %d, want 1", s.Stats().Rebuilt)
	}
	if !bytes.Equal(before, s.Batcher(bh).Bytes()) {
		t.Error("rebuild with unchanged input changed the bytes")
	}
}

func TestColorChangeOnlyTouchesColors(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	h := s.CreateSpriteNode(bh, Rect{Width: 8, Height: 8}, 1, 1, ColorWhite, At(Vec3{X: 3}))
	mustUpdate(t, s)
	b := s.Batcher(bh)
	pos, uv, idx := b.Positions(), b.UVs(), b.Indices()

	s.Node(h).SetSpriteColor(Color{R: 0.5, A: 1})
	mustUpdate(t, s)

	for i, p := range b.Positions() {
		if p != pos[i] {
			t.Errorf("position %d changed", i)
		}
	}
	for i, v := range b.UVs() {
		if v != uv[i] {
			t.Errorf("uv %d changed", i)
		}
	}
	for i, v := range b.Indices() {
		if v != idx[i] {
			t.Errorf("index %d changed", i)
		}
	}
	if b.Colors()[0] != (Color{R: 0.5, A: 1}) {
		t.Errorf("color = %v", b.Colors()[0])
	}
}

func TestCleanBatcherIsNotRebuilt(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	h := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	mustUpdate(t, s)
	if s.Batcher(bh).Dirty() {
		t.Fatal("batcher should be clean after Update")
	}
	version := s.Mesh(s.Batcher(bh).Mesh()).Version()

	mustUpdate(t, s)
	if s.Stats().Rebuilt != 0 {
		t.Errorf("Rebuilt = %d, want 0", s.Stats().Rebuilt)
	}
	if s.Mesh(s.Batcher(bh).Mesh()).Version() != version {
		t.Error("mesh re-uploaded without changes")
	}

	s.Node(h).Transform().SetPosition(Vec3{X: 1})
	mustUpdate(t, s)
	if s.Stats().Rebuilt != 1 {
		t.Errorf("Rebuilt = %d, want 1 after a move", s.Stats().Rebuilt)
	}
}

func TestBatcherGrowsPastCapacity(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 2)
	for range 5 {
		s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	}
	mustUpdate(t, s)

	b := s.Batcher(bh)
	if b.QuadCount() != 5 {
		t.Errorf("QuadCount = %d, want 5", b.QuadCount())
	}
	if b.Capacity() != 8 {
		t.Errorf("Capacity = %d, want 8", b.Capacity())
	}
	if len(b.Bytes()) != 8*SpriteSize {
		t.Errorf("len(Bytes) = %d, want %d", len(b.Bytes()), 8*SpriteSize)
	}
	if got := len(s.Mesh(b.Mesh()).Indices); got != 30 {
		t.Errorf("mesh indices = %d, want 30", got)
	}
}

func TestBatcherMaxCapacityDropsQuads(t *testing.T) {
	ctx := NewTestContext(zaptest.NewLogger(t))
	ctx.Config.Scene.BatcherMaxCapacity = 4
	s := NewScene(ctx)
	bh := newTestBatcher(t, s, 16)
	if got := s.Batcher(bh).Capacity(); got != 4 {
		t.Fatalf("Capacity = %d, want clamped 4", got)
	}
	for range 6 {
		s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	}

	err := s.Update()
	if !errors.Is(err, ErrOutOfCapacity) {
		t.Fatalf("Update = %v, want ErrOutOfCapacity", err)
	}
	if got := s.Batcher(bh).QuadCount(); got != 4 {
		t.Errorf("QuadCount = %d, want 4", got)
	}
}

func TestInactiveNodesAreSkipped(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	p := emptyNode(s, IdentityTransform())
	a := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform().WithParent(p))
	mustUpdate(t, s)
	if got := s.Batcher(bh).QuadCount(); got != 2 {
		t.Fatalf("QuadCount = %d, want 2", got)
	}

	s.Node(a).SetActive(false)
	mustUpdate(t, s)
	if got := s.Batcher(bh).QuadCount(); got != 1 {
		t.Errorf("QuadCount = %d, want 1 with one sprite inactive", got)
	}

	s.Node(p).SetActive(false)
	mustUpdate(t, s)
	if got := s.Batcher(bh).QuadCount(); got != 0 {
		t.Errorf("QuadCount = %d, want 0 with the parent inactive", got)
	}
	if got := s.Batcher(bh).SpriteCount(); got != 2 {
		t.Errorf("SpriteCount = %d; inactive nodes still reference the batcher", got)
	}
}

func TestBatcherLayerMask(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	a := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	s.Node(a).SetLayer(Layer3)
	s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	mustUpdate(t, s)
	if got := s.Batcher(bh).LayerMask(); got != Layer0|Layer3 {
		t.Errorf("LayerMask = %b, want %b", got, Layer0|Layer3)
	}
}

func TestBatcherNodeCounts(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	font := newTestFont(t, s)
	a := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())
	s.CreateTextNode(bh, font, "A", ColorWhite, IdentityTransform())

	b := s.Batcher(bh)
	if b.SpriteCount() != 2 || b.TextNodeCount() != 1 || b.NodeCount() != 3 {
		t.Fatalf("counts = %d/%d/%d, want 2/1/3", b.SpriteCount(), b.TextNodeCount(), b.NodeCount())
	}
	s.DestroyNode(a)
	if b = s.Batcher(bh); b.SpriteCount() != 1 {
		t.Errorf("SpriteCount = %d after destroy, want 1", b.SpriteCount())
	}
}

func TestTextQuadsWithBackground(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	font := newTestFont(t, s)
	h := s.CreateTextNode(bh, font, "AB", ColorWhite, IdentityTransform())
	bg := Color{A: 0.5}
	s.Node(h).SetTextBackgroundColor(bg)
	s.Node(h).SetTextDrawBackground(true)
	mustUpdate(t, s)

	b := s.Batcher(bh)
	if b.QuadCount() != 3 {
		t.Fatalf("QuadCount = %d, want background + 2 glyphs", b.QuadCount())
	}
	pos, uv, col := b.Positions(), b.UVs(), b.Colors()

	// background spans the bounds below the origin
	wantBG := []Vec3{{0, -10, 0}, {14, -10, 0}, {14, 0, 0}, {0, 0, 0}}
	for i := range wantBG {
		assertVec3(t, "background", pos[i], wantBG[i])
		assertNear(t, "background u", uv[i].X, 0)
		assertNear(t, "background v", uv[i].Y, 1)
		if col[i] != bg {
			t.Errorf("background color = %v", col[i])
		}
	}

	// 'A' is an 8x10 cell at the origin, its rect at the atlas top-left
	assertVec3(t, "A bottom-left", pos[4], Vec3{0, -10, 0})
	assertVec3(t, "A top-right", pos[6], Vec3{8, 0, 0})
	assertNear(t, "A v0", uv[4].Y, 1-float32(10)/64)
	assertNear(t, "A u1", uv[6].X, float32(8)/64)

	// 'B' is kerned one pixel left and offset one right
	assertVec3(t, "B bottom-left", pos[8], Vec3{8, -10, 0})
	assertVec3(t, "B top-right", pos[10], Vec3{14, -2, 0})
}

func TestTextChangeRelayouts(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	h := s.CreateTextNode(bh, newTestFont(t, s), "A", ColorWhite, IdentityTransform())
	mustUpdate(t, s)
	if got := s.Batcher(bh).QuadCount(); got != 1 {
		t.Fatalf("QuadCount = %d, want 1", got)
	}
	s.Node(h).SetText("AAA")
	mustUpdate(t, s)
	if got := s.Batcher(bh).QuadCount(); got != 3 {
		t.Errorf("QuadCount = %d, want 3", got)
	}
	assertNear(t, "bounds", s.Node(h).Text().Bounds().X, 24)
}

func TestDestroySpriteBatcherReleasesMesh(t *testing.T) {
	s := newTestScene(t)
	bh := newTestBatcher(t, s, 4)
	b := s.Batcher(bh)
	mesh, r := b.Mesh(), b.Renderable()
	n := s.CreateSpriteNode(bh, Rect{Width: 1, Height: 1}, 1, 1, ColorWhite, IdentityTransform())

	if !s.DestroySpriteBatcher(bh) {
		t.Fatal("destroy failed")
	}
	if s.Mesh(mesh) != nil || s.Renderable(r) != nil {
		t.Error("mesh and renderable should be released")
	}
	if err := s.RebuildBatcher(bh); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("RebuildBatcher = %v, want ErrInvalidHandle", err)
	}
	// the orphaned sprite is ignored
	mustUpdate(t, s)
	if !s.DestroyNode(n) {
		t.Error("orphaned sprite should still be destroyable")
	}
}

func BenchmarkRebuildBatcher(b *testing.B) {
	s := NewScene(nil)
	bh := newTestBatcher(b, s, 0)
	var first handle.Handle[Node]
	for i := range 1000 {
		h := s.CreateSpriteNode(bh, Rect{Width: 16, Height: 16}, 1, 1, ColorWhite,
			At(Vec3{X: float32(i % 40), Y: float32(i / 40)}))
		if i == 0 {
			first = h
		}
	}
	if err := s.Update(); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Node(first).Transform().SetPosition(Vec3{Z: float32(i)})
		_ = s.Update()
	}
}
