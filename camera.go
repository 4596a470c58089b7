package smol

import "github.com/phanxgames/smol/handle"

// Projection selects a camera's projection type.
type Projection uint8

const (
	ProjectionPerspective Projection = iota
	ProjectionOrthographic
)

// ClearOp selects what a camera clears before drawing.
type ClearOp uint8

const (
	ClearNone ClearOp = iota
	ClearColor
	ClearDepth
	ClearColorDepth
)

// Camera describes how a camera node projects the scene. Its view matrix is
// the inverse of the node's world matrix.
type Camera struct {
	Projection Projection
	FOV        float32 // vertical, degrees (perspective)
	Size       float32 // half the visible height in world units (orthographic)
	Near, Far  float32

	// Aspect overrides the viewport aspect ratio when non-zero.
	Aspect float32

	// Layers selects which node layers this camera draws.
	Layers Layer

	// Viewport is the normalized [0, 1] region of the target this camera
	// draws into, origin top-left.
	Viewport Rect

	ClearOp    ClearOp
	ClearColor Color

	// Priority orders camera passes; lower draws first.
	Priority int

	// Target is a render texture to draw into instead of the screen.
	Target handle.Handle[Texture]
}

// PerspectiveCamera returns a camera drawing every layer into the full target.
func PerspectiveCamera(fov, near, far float32) Camera {
	return Camera{
		Projection: ProjectionPerspective,
		FOV:        fov,
		Near:       near,
		Far:        far,
		Layers:     LayerAll,
		Viewport:   Rect{0, 0, 1, 1},
		ClearOp:    ClearColorDepth,
		ClearColor: ColorBlack,
		Target:     handle.Invalid[Texture](),
	}
}

// OrthographicCamera returns a camera showing size world units above and
// below its center.
func OrthographicCamera(size, near, far float32) Camera {
	return Camera{
		Projection: ProjectionOrthographic,
		Size:       size,
		Near:       near,
		Far:        far,
		Layers:     LayerAll,
		Viewport:   Rect{0, 0, 1, 1},
		ClearOp:    ClearColorDepth,
		ClearColor: ColorBlack,
		Target:     handle.Invalid[Texture](),
	}
}

// Sees reports whether the camera draws nodes on layer l.
func (c *Camera) Sees(l Layer) bool { return c.Layers&l != 0 }

// ProjectionMatrix returns the projection for a target with the given
// aspect ratio (width / height). c.Aspect wins when set.
func (c *Camera) ProjectionMatrix(aspect float32) Mat4 {
	if c.Aspect != 0 {
		aspect = c.Aspect
	}
	if aspect == 0 {
		aspect = 1
	}
	if c.Projection == ProjectionOrthographic {
		h := c.Size
		w := h * aspect
		return Ortho(-w, w, h, -h, c.Near, c.Far)
	}
	return Perspective(c.FOV, aspect, c.Near, c.Far)
}

// ViewportPixels maps the normalized viewport into a target of the given
// size, clamped to the target bounds. Returns x0, y0, x1, y1.
func (c *Camera) ViewportPixels(targetW, targetH int) (x0, y0, x1, y1 int) {
	v := c.Viewport
	clamp := func(f float32) float32 { return min(max(f, 0), 1) }
	x0 = int(clamp(v.X)*float32(targetW) + 0.5)
	y0 = int(clamp(v.Y)*float32(targetH) + 0.5)
	x1 = int(clamp(v.X+v.Width)*float32(targetW) + 0.5)
	y1 = int(clamp(v.Y+v.Height)*float32(targetH) + 0.5)
	return x0, y0, x1, y1
}
