package smol

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/phanxgames/smol/arena"
	"github.com/phanxgames/smol/handle"
)

// Per-sprite footprint in a batcher's scratch arena. Each attribute lives in
// its own region sized for the batcher's capacity.
const (
	SpritePositionsSize = 4 * 3 * 4 // 4 × Vec3
	SpriteColorsSize    = 4 * 4 * 4 // 4 × Color
	SpriteUVsSize       = 4 * 2 * 4 // 4 × Vec2
	SpriteIndicesSize   = 6 * 4     // 6 × uint32

	SpriteSize = SpritePositionsSize + SpriteColorsSize + SpriteUVsSize + SpriteIndicesSize
)

// quadIndices is the index pattern of one quad, offset by 4 per quad.
var quadIndices = [6]uint32{0, 1, 2, 2, 3, 0}

// BatchMode selects the space a batcher's quads live in.
type BatchMode uint8

const (
	// BatchCamera quads are in world space. A camera draws only the quads of
	// nodes whose layer intersects its mask.
	BatchCamera BatchMode = iota
	// BatchScreen quads are in pixels, origin bottom-left, y up, drawn after
	// all camera passes.
	BatchScreen
)

// SpriteBatcher merges the quads of every sprite and text node that
// references it into one dynamic mesh sharing one material.
type SpriteBatcher struct {
	material   handle.Handle[Material]
	mesh       handle.Handle[Mesh]
	renderable handle.Handle[Renderable]
	mode       BatchMode

	scratch     *arena.Arena
	capacity    int
	maxCapacity int
	quadCount   int
	spriteCount int
	textCount   int
	layers      Layer
	dirty       bool

	quads []quadSource // reused between rebuilds
	runs  []LayerRun
}

// LayerRun is a run of consecutive quads emitted by nodes on the same layer.
type LayerRun struct {
	Layer Layer
	First int // first quad
	Count int
}

// quadSource is a quad collected from a node before it is written out.
type quadSource struct {
	world  Mat4
	x, y   float32 // local bottom-left
	w, h   float32
	angle  float32
	layer  Layer
	uv     [4]float32 // u0, v0 (bottom), u1, v1 (top)
	colors [4]Color
}

// Material returns the material shared by the batcher's quads.
func (b *SpriteBatcher) Material() handle.Handle[Material] { return b.material }

// Mesh returns the dynamic mesh the batcher uploads into.
func (b *SpriteBatcher) Mesh() handle.Handle[Mesh] { return b.mesh }

// Renderable returns the batcher's material/mesh pair.
func (b *SpriteBatcher) Renderable() handle.Handle[Renderable] { return b.renderable }

// Mode returns the batcher's coordinate space.
func (b *SpriteBatcher) Mode() BatchMode { return b.mode }

// SpriteCount returns the number of live sprite nodes referencing b.
func (b *SpriteBatcher) SpriteCount() int { return b.spriteCount }

// TextNodeCount returns the number of live text nodes referencing b.
func (b *SpriteBatcher) TextNodeCount() int { return b.textCount }

// NodeCount returns the number of live sprite and text nodes referencing b.
func (b *SpriteBatcher) NodeCount() int { return b.spriteCount + b.textCount }

// QuadCount returns the number of quads written by the last rebuild.
func (b *SpriteBatcher) QuadCount() int { return b.quadCount }

// Capacity returns the number of quads the scratch arena is sized for.
func (b *SpriteBatcher) Capacity() int { return b.capacity }

// Dirty reports whether the batcher needs a rebuild.
func (b *SpriteBatcher) Dirty() bool { return b.dirty }

// LayerMask returns the OR of the layers of the nodes emitted by the last
// rebuild.
func (b *SpriteBatcher) LayerMask() Layer { return b.layers }

// Runs returns the layer runs of the last rebuild in quad order.
func (b *SpriteBatcher) Runs() []LayerRun { return b.runs }

func (b *SpriteBatcher) positionsOff() int { return 0 }
func (b *SpriteBatcher) colorsOff() int    { return b.capacity * SpritePositionsSize }
func (b *SpriteBatcher) uvsOff() int       { return b.capacity * (SpritePositionsSize + SpriteColorsSize) }
func (b *SpriteBatcher) indicesOff() int {
	return b.capacity * (SpritePositionsSize + SpriteColorsSize + SpriteUVsSize)
}

// Bytes returns the raw scratch arena: positions, colors, uvs and indices
// regions, each sized for Capacity quads.
func (b *SpriteBatcher) Bytes() []byte { return b.scratch.All() }

// Positions decodes the vertex positions of the last rebuild.
func (b *SpriteBatcher) Positions() []Vec3 {
	out := make([]Vec3, b.quadCount*4)
	off := b.positionsOff()
	for i := range out {
		o := off + i*12
		out[i] = Vec3{b.scratch.Float32At(o), b.scratch.Float32At(o + 4), b.scratch.Float32At(o + 8)}
	}
	return out
}

// Colors decodes the vertex colors of the last rebuild.
func (b *SpriteBatcher) Colors() []Color {
	out := make([]Color, b.quadCount*4)
	off := b.colorsOff()
	for i := range out {
		o := off + i*16
		out[i] = Color{
			b.scratch.Float32At(o), b.scratch.Float32At(o + 4),
			b.scratch.Float32At(o + 8), b.scratch.Float32At(o + 12),
		}
	}
	return out
}

// UVs decodes the texture coordinates of the last rebuild.
func (b *SpriteBatcher) UVs() []Vec2 {
	out := make([]Vec2, b.quadCount*4)
	off := b.uvsOff()
	for i := range out {
		o := off + i*8
		out[i] = Vec2{b.scratch.Float32At(o), b.scratch.Float32At(o + 4)}
	}
	return out
}

// Indices decodes the index list of the last rebuild.
func (b *SpriteBatcher) Indices() []uint32 {
	out := make([]uint32, b.quadCount*6)
	off := b.indicesOff()
	for i := range out {
		out[i] = b.scratch.Uint32At(off + i*4)
	}
	return out
}

// CreateSpriteBatcher creates a batcher for quads sharing material. capacity
// <= 0 uses the configured default. The batcher owns a dynamic mesh and a
// renderable, both released by DestroySpriteBatcher.
func (s *Scene) CreateSpriteBatcher(material handle.Handle[Material], capacity int, mode BatchMode) handle.Handle[SpriteBatcher] {
	if !s.materials.Valid(material) {
		s.log.Error("sprite batcher references an invalid material", zap.Stringer("material", material))
	}
	if capacity <= 0 {
		capacity = s.cfg.Scene.BatcherCapacity
	}
	maxCap := s.cfg.Scene.BatcherMaxCapacity
	if maxCap > 0 && capacity > maxCap {
		capacity = maxCap
	}
	mesh := s.meshes.Add(Mesh{Dynamic: true, version: 1})
	b := SpriteBatcher{
		material:    material,
		mesh:        mesh,
		renderable:  s.CreateRenderable(material, mesh),
		mode:        mode,
		scratch:     arena.New(capacity * SpriteSize),
		capacity:    capacity,
		maxCapacity: maxCap,
		dirty:       true,
	}
	b.scratch.PushZeroed(capacity * SpriteSize)
	return s.batchers.Add(b)
}

// Batcher returns the batcher for h, or nil if h is stale.
func (s *Scene) Batcher(h handle.Handle[SpriteBatcher]) *SpriteBatcher {
	return s.batchers.Lookup(h)
}

// Batchers returns the packed live batchers.
func (s *Scene) Batchers() []SpriteBatcher { return s.batchers.Slice() }

// DestroySpriteBatcher releases the batcher with its mesh and renderable.
// Nodes still referencing it are skipped from then on.
func (s *Scene) DestroySpriteBatcher(h handle.Handle[SpriteBatcher]) bool {
	b := s.batchers.Lookup(h)
	if b == nil {
		return s.batchers.Remove(h)
	}
	s.DestroyRenderable(b.renderable)
	s.DestroyMesh(b.mesh)
	return s.batchers.Remove(h)
}

// RebuildBatchers rebuilds every dirty batcher from the last transform pass.
// Overflow errors are joined; the other batchers are still rebuilt.
func (s *Scene) RebuildBatchers() error {
	var errs []error
	s.stats.Rebuilt = 0
	for i := 0; i < s.batchers.Count(); i++ {
		h := s.batchers.HandleAt(i)
		if !s.batchers.Lookup(h).dirty {
			continue
		}
		s.stats.Rebuilt++
		if err := s.RebuildBatcher(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RebuildBatcher regenerates the batcher's quads from every visible node
// referencing it, in packed node order, and uploads them into its mesh. The
// output is byte-identical for unchanged input.
func (s *Scene) RebuildBatcher(h handle.Handle[SpriteBatcher]) error {
	b := s.batchers.Lookup(h)
	if b == nil {
		return fmt.Errorf("smol: failed to rebuild batcher %v: %w", h, ErrInvalidHandle)
	}
	s.collectQuads(h, b)

	var err error
	n := len(b.quads)
	if n > b.capacity {
		b.grow(n)
	}
	if n > b.capacity {
		err = fmt.Errorf("smol: batcher %v needs %d quads, max %d: %w", h, n, b.capacity, ErrOutOfCapacity)
		s.log.Error("sprite batcher over capacity, quads dropped",
			zap.Stringer("batcher", h),
			zap.Int("quads", n),
			zap.Int("capacity", b.capacity))
		n = b.capacity
	}

	b.runs = b.runs[:0]
	for i := 0; i < n; i++ {
		q := &b.quads[i]
		b.writeQuad(i, q)
		if last := len(b.runs) - 1; last >= 0 && b.runs[last].Layer == q.layer {
			b.runs[last].Count++
		} else {
			b.runs = append(b.runs, LayerRun{Layer: q.layer, First: i, Count: 1})
		}
	}
	b.quadCount = n
	b.dirty = false
	s.uploadBatcher(b)
	return err
}

// grow doubles capacity until n quads fit, bounded by maxCapacity.
func (b *SpriteBatcher) grow(n int) {
	c := max(b.capacity, 1)
	for c < n {
		c *= 2
	}
	if b.maxCapacity > 0 && c > b.maxCapacity {
		c = b.maxCapacity
	}
	if c == b.capacity {
		return
	}
	b.capacity = c
	b.scratch.Reset()
	b.scratch.Reserve(c * SpriteSize)
	b.scratch.PushZeroed(c * SpriteSize)
}

// collectQuads gathers the quads of every visible node referencing h.
func (s *Scene) collectQuads(h handle.Handle[SpriteBatcher], b *SpriteBatcher) {
	b.quads = b.quads[:0]
	b.layers = 0
	var texSize Vec2
	texResolved := false

	nodes := s.nodes.Slice()
	for i := range nodes {
		n := &nodes[i]
		if !n.visible {
			continue
		}
		switch p := n.payload.(type) {
		case *SpritePayload:
			if p.Batcher != h {
				continue
			}
			if !texResolved {
				texSize = s.batcherTextureSize(b)
				texResolved = true
			}
			b.quads = append(b.quads, quadSource{
				world:  n.transform.world,
				w:      p.Width,
				h:      p.Height,
				angle:  p.Angle,
				layer:  n.layer,
				uv:     rectUV(p.Rect, texSize),
				colors: p.Colors,
			})
			b.layers |= n.layer
		case *TextPayload:
			if p.Batcher != h {
				continue
			}
			if s.collectText(b, n, p) {
				b.layers |= n.layer
			}
		case *MeshPayload, *CameraPayload, nil:
		default:
			panic(fmt.Sprintf("smol: unknown payload %T", p))
		}
	}
}

// collectText lays out p and appends its background and glyph quads.
func (s *Scene) collectText(b *SpriteBatcher, n *Node, p *TextPayload) bool {
	f := s.fonts.Lookup(p.Font)
	if f == nil {
		s.log.Error("text node references an invalid font", zap.Stringer("font", p.Font))
		return false
	}
	if p.layout == nil {
		p.layout = f.layout(p.Text, p.LineHeightScale)
	}
	texSize := s.fontTextureSize(f)
	lay := p.layout

	if p.DrawBackground {
		b.quads = append(b.quads, quadSource{
			world:  n.transform.world,
			y:      -lay.bounds.Y,
			w:      lay.bounds.X,
			h:      lay.bounds.Y,
			layer:  n.layer,
			uv:     [4]float32{0, 1, 0, 1},
			colors: [4]Color{p.BackgroundColor, p.BackgroundColor, p.BackgroundColor, p.BackgroundColor},
		})
	}
	for _, g := range lay.glyphs {
		b.quads = append(b.quads, quadSource{
			world:  n.transform.world,
			x:      g.x,
			y:      g.y,
			w:      g.w,
			h:      g.h,
			layer:  n.layer,
			uv:     rectUV(g.rect, texSize),
			colors: [4]Color{p.Color, p.Color, p.Color, p.Color},
		})
	}
	return true
}

func (s *Scene) batcherTextureSize(b *SpriteBatcher) Vec2 {
	if m := s.materials.Lookup(b.material); m != nil {
		return s.materialTextureSize(m)
	}
	return Vec2{float32(s.cfg.Render.CheckerWidth), float32(s.cfg.Render.CheckerHeight)}
}

// rectUV normalizes a top-left-origin pixel rect against the texture size,
// flipping v so that v=1 is the top row.
func rectUV(r Rect, tex Vec2) [4]float32 {
	if tex.X <= 0 || tex.Y <= 0 {
		return [4]float32{0, 0, 1, 1}
	}
	return [4]float32{
		r.X / tex.X,
		1 - (r.Y+r.Height)/tex.Y,
		(r.X + r.Width) / tex.X,
		1 - r.Y/tex.Y,
	}
}

// writeQuad writes quad i's vertices and indices into the scratch arena.
// Corners are bottom-left, bottom-right, top-right, top-left.
func (b *SpriteBatcher) writeQuad(i int, q *quadSource) {
	corners := [4]Vec3{
		{q.x, q.y, 0},
		{q.x + q.w, q.y, 0},
		{q.x + q.w, q.y + q.h, 0},
		{q.x, q.y + q.h, 0},
	}
	if q.angle != 0 {
		sin, cos := math32.Sincos(q.angle * degToRad)
		cx, cy := q.x+q.w/2, q.y+q.h/2
		for j := range corners {
			dx, dy := corners[j].X-cx, corners[j].Y-cy
			corners[j].X = cx + dx*cos - dy*sin
			corners[j].Y = cy + dx*sin + dy*cos
		}
	}
	uvs := [4]Vec2{
		{q.uv[0], q.uv[1]},
		{q.uv[2], q.uv[1]},
		{q.uv[2], q.uv[3]},
		{q.uv[0], q.uv[3]},
	}

	a := b.scratch
	pos := b.positionsOff() + i*SpritePositionsSize
	col := b.colorsOff() + i*SpriteColorsSize
	uv := b.uvsOff() + i*SpriteUVsSize
	for j := 0; j < 4; j++ {
		p := q.world.MulPoint(corners[j])
		a.PutFloat32(pos+j*12, p.X)
		a.PutFloat32(pos+j*12+4, p.Y)
		a.PutFloat32(pos+j*12+8, p.Z)

		c := q.colors[j]
		a.PutFloat32(col+j*16, c.R)
		a.PutFloat32(col+j*16+4, c.G)
		a.PutFloat32(col+j*16+8, c.B)
		a.PutFloat32(col+j*16+12, c.A)

		a.PutFloat32(uv+j*8, uvs[j].X)
		a.PutFloat32(uv+j*8+4, uvs[j].Y)
	}
	idx := b.indicesOff() + i*SpriteIndicesSize
	base := uint32(i * 4)
	for j, v := range quadIndices {
		a.PutUint32(idx+j*4, base+v)
	}
}

// uploadBatcher copies the written range into the batcher's mesh.
func (s *Scene) uploadBatcher(b *SpriteBatcher) {
	m := s.meshes.Lookup(b.mesh)
	if m == nil {
		s.log.Error("sprite batcher mesh is gone", zap.Stringer("mesh", b.mesh))
		return
	}
	m.Primitive = PrimitiveTriangles
	m.Positions = append(m.Positions[:0], b.Positions()...)
	m.Colors = append(m.Colors[:0], b.Colors()...)
	m.UV0 = append(m.UV0[:0], b.UVs()...)
	m.Indices = append(m.Indices[:0], b.Indices()...)
	m.UV1 = m.UV1[:0]
	m.Normals = m.Normals[:0]
	m.version++
}
