package smol

import (
	"fmt"
	"time"

	"github.com/brunoga/deep"
	"go.uber.org/zap"

	"github.com/phanxgames/smol/config"
	"github.com/phanxgames/smol/handle"
)

// Scene owns every resource and node of one world. All access goes through
// handles resolved against the Scene's allocators. Not safe for concurrent
// use; mutate it from the goroutine that runs the frame loop.
type Scene struct {
	cfg   *config.Config
	log   *zap.Logger
	debug bool

	shaders     *handle.Allocator[Shader]
	textures    *handle.Allocator[Texture]
	materials   *handle.Allocator[Material]
	meshes      *handle.Allocator[Mesh]
	renderables *handle.Allocator[Renderable]
	fonts       *handle.Allocator[Font]
	nodes       *handle.Allocator[Node]
	batchers    *handle.Allocator[SpriteBatcher]

	root           handle.Handle[Node]
	defaultTexture handle.Handle[Texture]

	frame uint64
	stats FrameStats
}

// NewScene creates a scene with an active root node. A nil ctx uses default
// settings and discards log output.
func NewScene(ctx *Context) *Scene {
	if ctx == nil {
		ctx = NewTestContext(nil)
	}
	cfg := ctx.Config
	log := ctx.Log
	sc := cfg.Scene
	s := &Scene{
		cfg:   cfg,
		log:   log,
		debug: cfg.Debug,

		shaders:     handle.New[Shader](sc.Shaders, handle.WithName("shader"), handle.WithLogger(log)),
		textures:    handle.New[Texture](sc.Textures, handle.WithName("texture"), handle.WithLogger(log)),
		materials:   handle.New[Material](sc.Materials, handle.WithName("material"), handle.WithLogger(log)),
		meshes:      handle.New[Mesh](sc.Meshes, handle.WithName("mesh"), handle.WithLogger(log)),
		renderables: handle.New[Renderable](sc.Renderables, handle.WithName("renderable"), handle.WithLogger(log)),
		fonts:       handle.New[Font](sc.Fonts, handle.WithName("font"), handle.WithLogger(log)),
		nodes:       handle.New[Node](sc.Nodes, handle.WithName("node"), handle.WithLogger(log)),
		batchers:    handle.New[SpriteBatcher](sc.Batchers, handle.WithName("sprite batcher"), handle.WithLogger(log)),

		defaultTexture: handle.Invalid[Texture](),
	}
	s.root = s.nodes.Add(newNode(KindRoot, nil, IdentityTransform()))
	return s
}

// Root returns the root node handle. Nodes without a parent hang off it.
func (s *Scene) Root() handle.Handle[Node] { return s.root }

// Logger returns the scene's logger.
func (s *Scene) Logger() *zap.Logger { return s.log }

// SetDebugMode enables per-frame stats logging at debug level.
func (s *Scene) SetDebugMode(enabled bool) { s.debug = enabled }

// Frame returns the number of completed transform passes.
func (s *Scene) Frame() uint64 { return s.frame }

// --- Node creation ---

// CreateMeshNode adds a node drawing renderable.
func (s *Scene) CreateMeshNode(renderable handle.Handle[Renderable], t Transform) handle.Handle[Node] {
	if !s.renderables.Valid(renderable) {
		s.log.Error("mesh node references an invalid renderable", zap.Stringer("renderable", renderable))
	}
	return s.addNode(KindMesh, &MeshPayload{Renderable: renderable}, t)
}

// CreateSpriteNode adds a width×height quad sampling rect from the batcher's
// material texture. Returns the invalid handle if batcher does not resolve.
func (s *Scene) CreateSpriteNode(batcher handle.Handle[SpriteBatcher], rect Rect, width, height float32, c Color, t Transform) handle.Handle[Node] {
	if !s.batchers.Valid(batcher) {
		s.log.Error("sprite node references an invalid batcher", zap.Stringer("batcher", batcher))
		return handle.Invalid[Node]()
	}
	return s.addNode(KindSprite, &SpritePayload{
		Batcher: batcher,
		Rect:    rect,
		Width:   width,
		Height:  height,
		Colors:  [4]Color{c, c, c, c},
	}, t)
}

// CreateTextNode adds a text node whose glyphs are batched through batcher.
// Returns the invalid handle if batcher or font does not resolve.
func (s *Scene) CreateTextNode(batcher handle.Handle[SpriteBatcher], font handle.Handle[Font], text string, c Color, t Transform) handle.Handle[Node] {
	if !s.batchers.Valid(batcher) {
		s.log.Error("text node references an invalid batcher", zap.Stringer("batcher", batcher))
		return handle.Invalid[Node]()
	}
	if !s.fonts.Valid(font) {
		s.log.Error("text node references an invalid font", zap.Stringer("font", font))
		return handle.Invalid[Node]()
	}
	return s.addNode(KindText, &TextPayload{
		Batcher:         batcher,
		Font:            font,
		Text:            text,
		Color:           c,
		LineHeightScale: 1,
	}, t)
}

// CreatePerspectiveCameraNode adds a perspective camera. fov is vertical,
// in degrees.
func (s *Scene) CreatePerspectiveCameraNode(fov, near, far float32, t Transform) handle.Handle[Node] {
	return s.CreateCameraNode(PerspectiveCamera(fov, near, far), t)
}

// CreateOrthographicCameraNode adds an orthographic camera showing size
// world units above and below its center.
func (s *Scene) CreateOrthographicCameraNode(size, near, far float32, t Transform) handle.Handle[Node] {
	return s.CreateCameraNode(OrthographicCamera(size, near, far), t)
}

// CreateCameraNode adds a camera node with a fully specified Camera.
func (s *Scene) CreateCameraNode(c Camera, t Transform) handle.Handle[Node] {
	return s.addNode(KindCamera, &CameraPayload{Camera: c}, t)
}

func (s *Scene) addNode(kind NodeKind, payload Payload, t Transform) handle.Handle[Node] {
	if !t.parent.IsNil() && !s.nodes.Valid(t.parent) {
		s.log.Error("invalid parent, node attached to root", zap.Stringer("parent", t.parent))
		t.parent = handle.Invalid[Node]()
	}
	t.dirty, t.moved = true, true
	h := s.nodes.Add(newNode(kind, payload, t))
	s.attach(s.nodes.Lookup(h))
	return h
}

// attach and detach keep batcher node counts equal to the number of live
// nodes referencing each batcher.
func (s *Scene) attach(n *Node) {
	s.adjustBatcherCount(n, 1)
}

func (s *Scene) detach(n *Node) {
	s.adjustBatcherCount(n, -1)
}

func (s *Scene) adjustBatcherCount(n *Node, delta int) {
	switch p := n.payload.(type) {
	case *SpritePayload:
		if b := s.batchers.Lookup(p.Batcher); b != nil {
			b.spriteCount += delta
			b.dirty = true
		}
	case *TextPayload:
		if b := s.batchers.Lookup(p.Batcher); b != nil {
			b.textCount += delta
			b.dirty = true
		}
	case *MeshPayload, *CameraPayload, nil:
	default:
		panic(fmt.Sprintf("smol: unknown payload %T", p))
	}
}

// --- Node access ---

// Node returns the node for h, or nil if h is stale.
func (s *Scene) Node(h handle.Handle[Node]) *Node { return s.nodes.Lookup(h) }

// Nodes returns the packed live nodes, root included. The order is stable
// until the next node is destroyed.
func (s *Scene) Nodes() []Node { return s.nodes.Slice() }

// NodeHandle returns the handle of the node at packed index i.
func (s *Scene) NodeHandle(i int) handle.Handle[Node] { return s.nodes.HandleAt(i) }

// NodeCount returns the number of live nodes, root included.
func (s *Scene) NodeCount() int { return s.nodes.Count() }

// DestroyNode removes a node. Children keep their now dangling parent handle
// and become inactive in the hierarchy; use DestroyNodeTree to remove them
// too. The root cannot be destroyed.
func (s *Scene) DestroyNode(h handle.Handle[Node]) bool {
	if h == s.root {
		s.log.Warn("refusing to destroy the root node")
		return false
	}
	n := s.nodes.Lookup(h)
	if n == nil {
		return s.nodes.Remove(h)
	}
	s.detach(n)
	return s.nodes.Remove(h)
}

// DestroyNodeTree removes h and every node below it. Returns the number of
// nodes removed.
func (s *Scene) DestroyNodeTree(h handle.Handle[Node]) int {
	if !s.nodes.Valid(h) || h == s.root {
		s.DestroyNode(h)
		return 0
	}
	doomed := []handle.Handle[Node]{h}
	for i := 0; i < s.nodes.Count(); i++ {
		nh := s.nodes.HandleAt(i)
		if nh != h && s.IsDescendantOf(nh, h) {
			doomed = append(doomed, nh)
		}
	}
	removed := 0
	for _, d := range doomed {
		if s.DestroyNode(d) {
			removed++
		}
	}
	return removed
}

// CloneNode copies a node, payload included, keeping its parent. The copy
// counts as a new reference on its batcher.
func (s *Scene) CloneNode(h handle.Handle[Node]) handle.Handle[Node] {
	n := s.nodes.Lookup(h)
	if n == nil || n.kind == KindRoot {
		s.log.Warn("cannot clone node", zap.Stringer("node", h))
		return handle.Invalid[Node]()
	}
	c := *n
	switch p := n.payload.(type) {
	case *MeshPayload:
		c.payload = deep.MustCopy(p)
	case *SpritePayload:
		c.payload = deep.MustCopy(p)
	case *TextPayload:
		cp := *p
		cp.layout = nil
		c.payload = &cp
	case *CameraPayload:
		c.payload = deep.MustCopy(p)
	default:
		panic(fmt.Sprintf("smol: unknown payload %T", p))
	}
	c.dirty = true
	c.visible = false
	c.transform.dirty, c.transform.moved = true, true
	c.transform.frame = 0

	nh := s.nodes.Add(c)
	s.attach(s.nodes.Lookup(nh))
	return nh
}

// --- Hierarchy ---

// SetParent re-parents child. A nil parent or the root attaches child to the
// root. An invalid parent is logged and leaves child attached to the root.
func (s *Scene) SetParent(child, parent handle.Handle[Node]) error {
	n := s.nodes.Lookup(child)
	if n == nil || child == s.root {
		return fmt.Errorf("smol: failed to set parent of %v: %w", child, ErrInvalidHandle)
	}
	if parent.IsNil() || parent == s.root {
		n.transform.parent = handle.Invalid[Node]()
		n.transform.moved = true
		return nil
	}
	if !s.nodes.Valid(parent) {
		s.log.Error("invalid parent, node attached to root",
			zap.Stringer("node", child), zap.Stringer("parent", parent))
		n.transform.parent = handle.Invalid[Node]()
		n.transform.moved = true
		return fmt.Errorf("smol: failed to set parent %v: %w", parent, ErrInvalidHandle)
	}
	if parent == child || s.IsDescendantOf(parent, child) {
		return fmt.Errorf("smol: failed to parent %v to %v: %w", child, parent, ErrCycle)
	}
	n.transform.parent = parent
	n.transform.moved = true
	return nil
}

// Parent returns the parent handle of h; the invalid handle means the root.
func (s *Scene) Parent(h handle.Handle[Node]) handle.Handle[Node] {
	if n := s.nodes.Lookup(h); n != nil {
		return n.transform.parent
	}
	return handle.Invalid[Node]()
}

// IsDescendantOf reports whether ancestor appears on h's parent chain.
func (s *Scene) IsDescendantOf(h, ancestor handle.Handle[Node]) bool {
	n := s.nodes.Lookup(h)
	for steps := s.nodes.Count(); n != nil && steps > 0; steps-- {
		p := n.transform.parent
		if p.IsNil() {
			return ancestor == s.root && h != s.root
		}
		if p == ancestor {
			return true
		}
		n = s.nodes.Lookup(p)
	}
	return false
}

// IsActiveInHierarchy reports whether h and every ancestor up to the root
// are active. A node whose parent was destroyed is inactive. O(depth); the
// result is never cached.
func (s *Scene) IsActiveInHierarchy(h handle.Handle[Node]) bool {
	n := s.nodes.Lookup(h)
	if n == nil {
		return false
	}
	if h == s.root {
		return n.active
	}
	for steps := s.nodes.Count(); steps > 0; steps-- {
		if !n.active {
			return false
		}
		p := n.transform.parent
		if p.IsNil() {
			return s.nodes.Lookup(s.root).active
		}
		if n = s.nodes.Lookup(p); n == nil {
			return false
		}
	}
	return false
}

// --- Frame ---

// Update runs the per-frame pipeline: world transforms top-down, dirty
// propagation to batchers, then a rebuild of every dirty batcher. Errors
// from batchers that overflowed their maximum capacity are returned joined;
// all other batchers are still rebuilt.
func (s *Scene) Update() error {
	start := time.Now()
	s.UpdateTransforms()
	s.propagateDirty()
	transformTime := time.Since(start)

	start = time.Now()
	err := s.RebuildBatchers()
	s.stats.TransformTime = transformTime
	s.stats.RebuildTime = time.Since(start)
	s.stats.Nodes = s.nodes.Count()
	s.debugLog()
	return err
}

// UpdateTransforms recomputes world matrices for every node whose local
// transform or ancestry changed, parents strictly before children.
func (s *Scene) UpdateTransforms() {
	s.frame++
	for i := 0; i < s.nodes.Count(); i++ {
		s.resolveWorld(i)
	}
}

// resolveWorld computes the world matrix and visibility of the node at
// packed index i, resolving its parent first.
func (s *Scene) resolveWorld(i int) {
	nodes := s.nodes.Slice()
	n := &nodes[i]
	t := &n.transform
	if t.frame == s.frame {
		return
	}
	t.frame = s.frame
	t.changed = false

	parentWorld := Identity()
	parentChanged := false
	parentVisible := true
	hasParent := false
	if n.kind != KindRoot {
		p := t.parent
		if p.IsNil() {
			p = s.root
		}
		if pi := s.nodes.IndexOf(p); pi >= 0 {
			s.resolveWorld(pi)
			pt := &nodes[pi].transform
			parentWorld = pt.world
			parentChanged = pt.changed
			parentVisible = nodes[pi].visible
			hasParent = true
		} else {
			parentVisible = false
		}
	}

	if t.moved || parentChanged || hasParent != t.hadParent {
		t.world = parentWorld.Mul(t.LocalMatrix())
		t.moved = false
		t.hadParent = hasParent
		t.changed = true
	}

	visible := n.active && parentVisible
	n.visibleChanged = visible != n.visible
	n.visible = visible
}

// propagateDirty flags the batcher of every sprite or text node that moved,
// changed content, or changed visibility this frame.
func (s *Scene) propagateDirty() {
	nodes := s.nodes.Slice()
	for i := range nodes {
		n := &nodes[i]
		if !n.dirty && !n.visibleChanged && !n.transform.changed {
			continue
		}
		if bh, ok := n.batcherOf(); ok {
			if b := s.batchers.Lookup(bh); b != nil {
				b.dirty = true
			}
		}
		n.dirty = false
	}
}

// Reset destroys every resource and node and recreates the root. Every
// outstanding handle becomes invalid.
func (s *Scene) Reset() {
	for _, t := range s.textures.Slice() {
		if t.image != nil {
			t.image.Deallocate()
		}
	}
	for _, sh := range s.shaders.Slice() {
		if sh.program != nil {
			sh.program.Deallocate()
		}
	}
	s.shaders.Reset()
	s.textures.Reset()
	s.materials.Reset()
	s.meshes.Reset()
	s.renderables.Reset()
	s.fonts.Reset()
	s.nodes.Reset()
	s.batchers.Reset()
	s.defaultTexture = handle.Invalid[Texture]()
	s.root = s.nodes.Add(newNode(KindRoot, nil, IdentityTransform()))
}
