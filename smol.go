package smol

import (
	"image/color"

	"github.com/chewxy/math32"
	"github.com/hajimehoshi/ebiten/v2"
)

// Color is an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication happens when vertices are submitted.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{}
)

// RGBA converts c to an 8-bit non-premultiplied color.
func (c Color) RGBA() color.NRGBA {
	return color.NRGBA{R: unit8(c.R), G: unit8(c.G), B: unit8(c.B), A: unit8(c.A)}
}

// Premultiplied returns c with RGB scaled by alpha.
func (c Color) Premultiplied() Color {
	return Color{c.R * c.A, c.G * c.A, c.B * c.A, c.A}
}

func unit8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Vec2 is a 2D vector, used for texture coordinates and sizes.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a 3D vector for positions, Euler rotations and scales.
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 is a homogeneous 4D vector.
type Vec4 struct {
	X, Y, Z, W float32
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v multiplied by s.
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Mul returns the component-wise product of v and o.
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Len returns the length of v.
func (v Vec3) Len() float32 { return math32.Sqrt(v.Dot(v)) }

// Vec4 extends v with w.
func (v Vec3) Vec4(w float32) Vec4 { return Vec4{v.X, v.Y, v.Z, w} }

// Vec3 drops the W component.
func (v Vec4) Vec3() Vec3 { return Vec3{v.X, v.Y, v.Z} }

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Rect is an axis-aligned rectangle. Texture rects use pixel units with the
// origin at the top-left of the image; camera viewports use normalized units.
type Rect struct {
	X, Y, Width, Height float32
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float32) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// BlendMode selects a compositing operation. Each maps to a specific ebiten.Blend value.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendNone                      // opaque copy (skip blending)
)

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendMultiply:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// NodeKind identifies which payload a Node carries.
type NodeKind uint8

const (
	KindRoot   NodeKind = iota // the scene's single root; no payload
	KindCamera                 // CameraPayload
	KindMesh                   // MeshPayload, drawn through its Renderable
	KindSprite                 // SpritePayload, drawn through a SpriteBatcher
	KindText                   // TextPayload, glyphs drawn through a SpriteBatcher
)

// String returns the lowercase kind name.
func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCamera:
		return "camera"
	case KindMesh:
		return "mesh"
	case KindSprite:
		return "sprite"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Layer is a bitmask matched against a camera's layer mask.
type Layer uint32

const (
	Layer0 Layer = 1 << iota
	Layer1
	Layer2
	Layer3
	Layer4
	Layer5
	Layer6
	Layer7
	Layer8
	Layer9
	Layer10
	Layer11
	Layer12
	Layer13
	Layer14
	Layer15
	Layer16
	Layer17
	Layer18
	Layer19
	Layer20
	Layer21
	Layer22
	Layer23
	Layer24
	Layer25
	Layer26
	Layer27
	Layer28
	Layer29
	Layer30
	Layer31

	LayerNone Layer = 0
	LayerAll  Layer = ^Layer(0)
)

// RenderQueue orders draws inside a camera pass, lowest first.
type RenderQueue int

const (
	QueueOpaque      RenderQueue = 10
	QueueTransparent RenderQueue = 20
	QueueGUI         RenderQueue = 30
	QueueTerrain     RenderQueue = 40
)

// whitePixel is the source image for untextured geometry.
var whitePixel *ebiten.Image

func ensureWhitePixel() *ebiten.Image {
	if whitePixel == nil {
		whitePixel = ebiten.NewImage(1, 1)
		whitePixel.Fill(color.White)
	}
	return whitePixel
}
