package smol

import (
	"go.uber.org/zap"

	"github.com/phanxgames/smol/handle"
)

// ItemKind identifies what a RenderItem draws.
type ItemKind uint8

const (
	ItemMesh    ItemKind = iota // a mesh node's renderable with its world matrix
	ItemBatcher                 // a sprite batcher's mesh, already in world or pixel space
)

// RenderItem is one resolved draw in a camera pass. Every handle resolved
// when the list was built.
type RenderItem struct {
	Kind       ItemKind
	Node       handle.Handle[Node] // mesh items only
	Batcher    handle.Handle[SpriteBatcher]
	Renderable handle.Handle[Renderable]
	Material   handle.Handle[Material]
	Mesh       handle.Handle[Mesh]
	World      Mat4
	Queue      RenderQueue
	Layer      Layer

	// FirstIndex and IndexCount select a range of the mesh's indices.
	// IndexCount 0 draws every index.
	FirstIndex int
	IndexCount int

	order int // submission order, the sort tiebreak
}

// Indices returns the part of m's index buffer the item draws.
func (it *RenderItem) Indices(m *Mesh) []uint32 {
	if it.IndexCount == 0 {
		return m.Indices
	}
	end := it.FirstIndex + it.IndexCount
	if it.FirstIndex < 0 || end > len(m.Indices) {
		return nil
	}
	return m.Indices[it.FirstIndex:end]
}

// CameraPass is one camera with the items it draws, in draw order.
type CameraPass struct {
	Node   handle.Handle[Node]
	Camera Camera
	World  Mat4
	View   Mat4
	Items  []RenderItem
}

// RenderList is the draw order of one frame. Reuse it across frames to keep
// the build allocation-free once warmed up.
type RenderList struct {
	Passes  []CameraPass
	Overlay []RenderItem // screen-mode batchers, drawn after every pass
	Skipped int          // items dropped for malformed references

	candidates []RenderItem
	sortBuf    []RenderItem
}

// Reset empties the list, keeping its buffers.
func (l *RenderList) Reset() {
	for i := range l.Passes {
		l.Passes[i].Items = l.Passes[i].Items[:0]
	}
	l.Passes = l.Passes[:0]
	l.Overlay = l.Overlay[:0]
	l.candidates = l.candidates[:0]
	l.Skipped = 0
}

// ItemCount returns the number of items over all passes and the overlay.
func (l *RenderList) ItemCount() int {
	n := len(l.Overlay)
	for i := range l.Passes {
		n += len(l.Passes[i].Items)
	}
	return n
}

// RenderList fills buf from the last Update: cameras active in hierarchy
// sorted by priority, each with the mesh nodes and camera-mode batcher
// quads its layer mask selects, ordered by render queue then submission
// order. Items with unresolvable references are logged and skipped.
func (s *Scene) RenderList(buf *RenderList) {
	buf.Reset()
	s.collectCandidates(buf)

	nodes := s.nodes.Slice()
	for i := range nodes {
		n := &nodes[i]
		if !n.visible {
			continue
		}
		cp, ok := n.payload.(*CameraPayload)
		if !ok {
			continue
		}
		world := n.transform.world
		pass := s.nextPass(buf)
		pass.Node = s.nodes.HandleAt(i)
		pass.Camera = cp.Camera
		pass.World = world
		pass.View = world.Inverse()
		for _, it := range buf.candidates {
			if it.Kind == ItemBatcher && s.batchers.Lookup(it.Batcher).mode == BatchScreen {
				continue
			}
			if cp.Camera.Layers&it.Layer == 0 {
				continue
			}
			if last := len(pass.Items) - 1; last >= 0 && extendsRun(&pass.Items[last], &it) {
				pass.Items[last].IndexCount += it.IndexCount
				continue
			}
			pass.Items = append(pass.Items, it)
		}
		buf.sortBuf = sortItems(pass.Items, buf.sortBuf)
	}
	sortPasses(buf.Passes)

	for _, it := range buf.candidates {
		if it.Kind == ItemBatcher && s.batchers.Lookup(it.Batcher).mode == BatchScreen {
			buf.Overlay = append(buf.Overlay, it)
		}
	}
	buf.sortBuf = sortItems(buf.Overlay, buf.sortBuf)
}

// nextPass appends a pass, reusing a previous frame's Items slice.
func (s *Scene) nextPass(buf *RenderList) *CameraPass {
	if len(buf.Passes) < cap(buf.Passes) {
		buf.Passes = buf.Passes[:len(buf.Passes)+1]
		p := &buf.Passes[len(buf.Passes)-1]
		p.Items = p.Items[:0]
		return p
	}
	buf.Passes = append(buf.Passes, CameraPass{})
	return &buf.Passes[len(buf.Passes)-1]
}

// extendsRun reports whether next continues prev's index range in the same
// batcher, so both draw as one item.
func extendsRun(prev, next *RenderItem) bool {
	return prev.Kind == ItemBatcher && next.Kind == ItemBatcher &&
		prev.Batcher == next.Batcher && prev.IndexCount > 0 &&
		prev.FirstIndex+prev.IndexCount == next.FirstIndex
}

// collectCandidates resolves every drawable once per frame: visible mesh
// nodes in packed order, then batchers with quads. Camera-mode batchers
// yield one candidate per layer run so cameras filter them per node.
func (s *Scene) collectCandidates(buf *RenderList) {
	order := 0
	nodes := s.nodes.Slice()
	for i := range nodes {
		n := &nodes[i]
		if !n.visible {
			continue
		}
		switch p := n.payload.(type) {
		case *MeshPayload:
			it, ok := s.resolveRenderable(p.Renderable)
			if !ok {
				s.log.Error("skipping mesh node with malformed references",
					zap.Stringer("node", s.nodes.HandleAt(i)),
					zap.Stringer("renderable", p.Renderable))
				buf.Skipped++
				continue
			}
			it.Kind = ItemMesh
			it.Node = s.nodes.HandleAt(i)
			it.World = n.transform.world
			it.Layer = n.layer
			it.order = order
			order++
			buf.candidates = append(buf.candidates, it)
		case *SpritePayload, *TextPayload, *CameraPayload, nil:
		default:
			panic("smol: unknown payload type")
		}
	}

	batchers := s.batchers.Slice()
	for i := range batchers {
		b := &batchers[i]
		if b.quadCount == 0 {
			continue
		}
		it, ok := s.resolveRenderable(b.renderable)
		if !ok {
			s.log.Error("skipping sprite batcher with malformed references",
				zap.Stringer("batcher", s.batchers.HandleAt(i)))
			buf.Skipped++
			continue
		}
		it.Kind = ItemBatcher
		it.Node = handle.Invalid[Node]()
		it.Batcher = s.batchers.HandleAt(i)
		it.World = Identity()
		if b.mode == BatchScreen {
			it.Layer = b.layers
			it.order = order
			order++
			buf.candidates = append(buf.candidates, it)
			continue
		}
		for _, run := range b.runs {
			it.Layer = run.Layer
			it.FirstIndex = run.First * len(quadIndices)
			it.IndexCount = run.Count * len(quadIndices)
			it.order = order
			order++
			buf.candidates = append(buf.candidates, it)
		}
	}
}

// resolveRenderable checks the renderable, its material, mesh and shader.
func (s *Scene) resolveRenderable(h handle.Handle[Renderable]) (RenderItem, bool) {
	r := s.renderables.Lookup(h)
	if r == nil {
		return RenderItem{}, false
	}
	m := s.materials.Lookup(r.Material)
	if m == nil || s.meshes.Lookup(r.Mesh) == nil {
		return RenderItem{}, false
	}
	if !m.Shader.IsNil() {
		if sh := s.shaders.Lookup(m.Shader); sh == nil || !sh.Valid() {
			return RenderItem{}, false
		}
	}
	return RenderItem{
		Renderable: h,
		Material:   r.Material,
		Mesh:       r.Mesh,
		Batcher:    handle.Invalid[SpriteBatcher](),
		Queue:      m.RenderQueue,
	}, true
}

// --- Merge sort ---

// itemLessOrEqual orders by render queue, then submission order. Using <=
// on order keeps the sort stable.
func itemLessOrEqual(a, b *RenderItem) bool {
	if a.Queue != b.Queue {
		return a.Queue < b.Queue
	}
	return a.order <= b.order
}

// sortItems sorts items in place using buf as scratch space and returns the
// possibly grown buffer. Bottom-up merge sort: zero allocations after the
// buffer reaches its high-water mark.
func sortItems(items, buf []RenderItem) []RenderItem {
	n := len(items)
	if n <= 1 {
		return buf
	}
	if cap(buf) < n {
		buf = make([]RenderItem, n)
	}
	buf = buf[:n]

	a, b := items, buf
	swapped := false
	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}
	if swapped {
		copy(items, buf)
	}
	return buf
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []RenderItem, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if itemLessOrEqual(&src[i], &src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	k += copy(dst[k:], src[i:mid])
	copy(dst[k:], src[j:hi])
}

// sortPasses orders passes by priority with a stable insertion sort; scenes
// have a handful of cameras.
func sortPasses(p []CameraPass) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j].Camera.Priority < p[j-1].Camera.Priority; j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}
}
