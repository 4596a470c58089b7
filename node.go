package smol

import "github.com/phanxgames/smol/handle"

// Payload is the kind-specific data of a Node. The set of payload types is
// closed: MeshPayload, SpritePayload, TextPayload and CameraPayload.
type Payload interface {
	Kind() NodeKind
	isPayload()
}

// MeshPayload draws a Renderable with the node's world matrix.
type MeshPayload struct {
	Renderable handle.Handle[Renderable]
}

// SpritePayload is one quad in a SpriteBatcher.
type SpritePayload struct {
	Batcher handle.Handle[SpriteBatcher]
	Rect    Rect // source rect in texture pixels, origin top-left
	Width   float32
	Height  float32
	Angle   float32 // degrees around the quad center

	// Colors holds per-corner tints: bottom-left, bottom-right, top-right,
	// top-left.
	Colors [4]Color
}

// TextPayload is a run of glyphs from a Font, batched through a
// SpriteBatcher.
type TextPayload struct {
	Batcher         handle.Handle[SpriteBatcher]
	Font            handle.Handle[Font]
	Text            string
	Color           Color
	BackgroundColor Color
	DrawBackground  bool
	LineHeightScale float32

	layout *textLayout // nil until laid out; shared with the font cache
}

// Bounds returns the size of the laid-out text as of the last batcher
// rebuild.
func (p *TextPayload) Bounds() Vec2 {
	if p.layout == nil {
		return Vec2{}
	}
	return p.layout.bounds
}

// CameraPayload makes the node a camera looking down its local -Z axis.
type CameraPayload struct {
	Camera Camera
}

// Kind returns KindMesh.
func (*MeshPayload) Kind() NodeKind { return KindMesh }

// Kind returns KindSprite.
func (*SpritePayload) Kind() NodeKind { return KindSprite }

// Kind returns KindText.
func (*TextPayload) Kind() NodeKind { return KindText }

// Kind returns KindCamera.
func (*CameraPayload) Kind() NodeKind { return KindCamera }

func (*MeshPayload) isPayload()   {}
func (*SpritePayload) isPayload() {}
func (*TextPayload) isPayload()   {}
func (*CameraPayload) isPayload() {}

// Node is an element of the scene graph. Nodes live in the Scene's node
// allocator and are addressed by handle.Handle[Node]; a *Node obtained from
// Scene.Node is only valid until the next node is created or destroyed.
type Node struct {
	kind      NodeKind
	transform Transform
	active    bool
	dirty     bool
	layer     Layer
	payload   Payload

	// snapshot from the last transform pass
	visible        bool
	visibleChanged bool
}

func newNode(kind NodeKind, payload Payload, t Transform) Node {
	return Node{
		kind:      kind,
		transform: t,
		active:    true,
		dirty:     true,
		layer:     Layer0,
		payload:   payload,
	}
}

// Kind returns the node kind.
func (n *Node) Kind() NodeKind { return n.kind }

// Transform returns the node's transform for reading or mutation.
func (n *Node) Transform() *Transform { return &n.transform }

// Payload returns the kind-specific data, nil for the root.
func (n *Node) Payload() Payload { return n.payload }

// Active reports the node's own active flag. See Scene.IsActiveInHierarchy.
func (n *Node) Active() bool { return n.active }

// SetActive sets the node's own active flag.
func (n *Node) SetActive(active bool) {
	if n.active != active {
		n.active = active
		n.dirty = true
	}
}

// Dirty reports whether the node's content changed since the last update.
func (n *Node) Dirty() bool { return n.dirty }

// Layer returns the node's layer bits.
func (n *Node) Layer() Layer { return n.layer }

// SetLayer sets the layer bits matched against camera masks.
func (n *Node) SetLayer(l Layer) {
	n.layer = l
	n.dirty = true
}

// Mesh returns the mesh payload, or nil if n is not a mesh node.
func (n *Node) Mesh() *MeshPayload {
	p, _ := n.payload.(*MeshPayload)
	return p
}

// Sprite returns the sprite payload, or nil if n is not a sprite node.
func (n *Node) Sprite() *SpritePayload {
	p, _ := n.payload.(*SpritePayload)
	return p
}

// Text returns the text payload, or nil if n is not a text node.
func (n *Node) Text() *TextPayload {
	p, _ := n.payload.(*TextPayload)
	return p
}

// Camera returns the camera, or nil if n is not a camera node.
func (n *Node) Camera() *Camera {
	if p, ok := n.payload.(*CameraPayload); ok {
		return &p.Camera
	}
	return nil
}

func (n *Node) mustSprite(op string) *SpritePayload {
	p := n.Sprite()
	if p == nil {
		panic("smol: " + op + " on " + n.kind.String() + " node")
	}
	return p
}

func (n *Node) mustText(op string) *TextPayload {
	p := n.Text()
	if p == nil {
		panic("smol: " + op + " on " + n.kind.String() + " node")
	}
	return p
}

// --- Sprite setters ---

// SetSpriteRect sets the source rect in texture pixels.
func (n *Node) SetSpriteRect(r Rect) {
	n.mustSprite("SetSpriteRect").Rect = r
	n.dirty = true
}

// SetSpriteSize sets the quad size in local units.
func (n *Node) SetSpriteSize(width, height float32) {
	p := n.mustSprite("SetSpriteSize")
	p.Width, p.Height = width, height
	n.dirty = true
}

// SetSpriteColor tints all four corners with c.
func (n *Node) SetSpriteColor(c Color) {
	n.mustSprite("SetSpriteColor").Colors = [4]Color{c, c, c, c}
	n.dirty = true
}

// SetSpriteCornerColors sets per-corner tints.
func (n *Node) SetSpriteCornerColors(bottomLeft, bottomRight, topRight, topLeft Color) {
	n.mustSprite("SetSpriteCornerColors").Colors = [4]Color{bottomLeft, bottomRight, topRight, topLeft}
	n.dirty = true
}

// SetSpriteAngle rotates the quad around its center, in degrees.
func (n *Node) SetSpriteAngle(deg float32) {
	n.mustSprite("SetSpriteAngle").Angle = deg
	n.dirty = true
}

// --- Text setters ---

// SetText replaces the text.
func (n *Node) SetText(text string) {
	p := n.mustText("SetText")
	if p.Text != text {
		p.Text = text
		p.layout = nil
	}
	n.dirty = true
}

// SetTextColor sets the glyph tint.
func (n *Node) SetTextColor(c Color) {
	n.mustText("SetTextColor").Color = c
	n.dirty = true
}

// SetTextBackgroundColor sets the background tint.
func (n *Node) SetTextBackgroundColor(c Color) {
	n.mustText("SetTextBackgroundColor").BackgroundColor = c
	n.dirty = true
}

// SetTextDrawBackground toggles the background quad.
func (n *Node) SetTextDrawBackground(draw bool) {
	n.mustText("SetTextDrawBackground").DrawBackground = draw
	n.dirty = true
}

// SetTextLineHeightScale scales the font line height.
func (n *Node) SetTextLineHeightScale(scale float32) {
	p := n.mustText("SetTextLineHeightScale")
	if p.LineHeightScale != scale {
		p.LineHeightScale = scale
		p.layout = nil
	}
	n.dirty = true
}

// batcherOf returns the batcher handle a sprite or text node feeds.
func (n *Node) batcherOf() (handle.Handle[SpriteBatcher], bool) {
	switch p := n.payload.(type) {
	case *SpritePayload:
		return p.Batcher, true
	case *TextPayload:
		return p.Batcher, true
	case *MeshPayload, *CameraPayload, nil:
		return handle.Handle[SpriteBatcher]{}, false
	default:
		panic("smol: unknown payload type")
	}
}
