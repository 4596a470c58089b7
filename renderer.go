package smol

import (
	"image"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/smol/config"
)

// nearW is the smallest clip-space w a vertex may have before its triangle
// counts as behind the camera.
const nearW = 1e-5

// RenderStats counts the work of the last Renderer.Draw.
type RenderStats struct {
	Passes    int
	Items     int
	DrawCalls int
	Triangles int
	Culled    int // triangles behind the near plane or back-facing
	Skipped   int // items with malformed references or unsupported meshes
}

// Renderer draws a Scene onto an ebiten image. It projects vertices on the
// CPU and submits one DrawTriangles32 call per item.
type Renderer struct {
	log *zap.Logger
	cfg *config.Config

	list  RenderList
	verts []ebiten.Vertex
	inds  []uint32
	clipW []float32
	clipZ []float32
	tris  []depthTri
	stats RenderStats
}

type depthTri struct {
	z       float32
	a, b, c uint32
}

// NewRenderer returns a renderer using ctx's config and logger. A nil ctx
// uses defaults.
func NewRenderer(ctx *Context) *Renderer {
	if ctx == nil {
		ctx = NewTestContext(nil)
	}
	return &Renderer{log: ctx.Log, cfg: ctx.Config}
}

// Stats returns the counts of the last Draw.
func (r *Renderer) Stats() RenderStats { return r.stats }

// List returns the render list built by the last Draw.
func (r *Renderer) List() *RenderList { return &r.list }

// Draw renders every camera pass of s, then the screen-mode batchers. Call
// s.Update first so transforms and batchers are current.
func (r *Renderer) Draw(screen *ebiten.Image, s *Scene) {
	r.stats = RenderStats{}
	s.RenderList(&r.list)
	r.stats.Skipped = r.list.Skipped

	cc := r.cfg.Render.ClearColor
	screen.Fill(Color{cc[0], cc[1], cc[2], cc[3]}.RGBA())

	for i := range r.list.Passes {
		pass := &r.list.Passes[i]
		dst := r.renderTarget(s, screen, &pass.Camera)
		bounds := dst.Bounds()
		x0, y0, x1, y1 := pass.Camera.ViewportPixels(bounds.Dx(), bounds.Dy())
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		area := image.Rect(bounds.Min.X+x0, bounds.Min.Y+y0, bounds.Min.X+x1, bounds.Min.Y+y1)
		target := dst.SubImage(area).(*ebiten.Image)
		switch pass.Camera.ClearOp {
		case ClearColor, ClearColorDepth:
			target.Fill(pass.Camera.ClearColor.RGBA())
		case ClearNone, ClearDepth:
		}
		r.stats.Passes++

		aspect := float32(area.Dx()) / float32(area.Dy())
		viewProj := pass.Camera.ProjectionMatrix(aspect).Mul(pass.View)
		for j := range pass.Items {
			it := &pass.Items[j]
			r.drawItem(target, area, s, viewProj.Mul(it.World), it)
		}
	}

	if len(r.list.Overlay) > 0 {
		bounds := screen.Bounds()
		pixels := Ortho(0, float32(bounds.Dx()), float32(bounds.Dy()), 0, -1, 1)
		for j := range r.list.Overlay {
			r.drawItem(screen, bounds, s, pixels, &r.list.Overlay[j])
		}
	}
}

// drawItem projects an item's mesh through mvp into area and submits it.
func (r *Renderer) drawItem(target *ebiten.Image, area image.Rectangle, s *Scene, mvp Mat4, it *RenderItem) {
	mesh := s.Mesh(it.Mesh)
	mat := s.Material(it.Material)
	if mesh == nil || mat == nil {
		r.stats.Skipped++
		return
	}
	if mesh.Primitive != PrimitiveTriangles {
		r.log.Error("skipping mesh with unsupported primitive",
			zap.Stringer("mesh", it.Mesh), zap.Uint8("primitive", uint8(mesh.Primitive)))
		r.stats.Skipped++
		return
	}
	r.stats.Items++

	src, opts := r.textureFor(s, mat)
	tw, th := float32(src.Bounds().Dx()), float32(src.Bounds().Dy())
	ax, ay := float32(area.Min.X), float32(area.Min.Y)
	aw, ah := float32(area.Dx()), float32(area.Dy())

	r.verts = r.verts[:0]
	r.clipW = r.clipW[:0]
	r.clipZ = r.clipZ[:0]
	for i, p := range mesh.Positions {
		clip := mvp.MulVec4(p.Vec4(1))
		r.clipW = append(r.clipW, clip.W)
		var ndc Vec3
		if clip.W > nearW {
			ndc = Vec3{clip.X / clip.W, clip.Y / clip.W, clip.Z / clip.W}
		}
		r.clipZ = append(r.clipZ, ndc.Z)

		v := ebiten.Vertex{
			DstX:   ax + (ndc.X+1)/2*aw,
			DstY:   ay + (1-ndc.Y)/2*ah,
			ColorR: 1,
			ColorG: 1,
			ColorB: 1,
			ColorA: 1,
		}
		if i < len(mesh.UV0) {
			uv := mesh.UV0[i]
			v.SrcX = uv.X * tw
			v.SrcY = (1 - uv.Y) * th
		}
		if i < len(mesh.Colors) {
			c := mesh.Colors[i].Premultiplied()
			v.ColorR, v.ColorG, v.ColorB, v.ColorA = c.R, c.G, c.B, c.A
		}
		r.verts = append(r.verts, v)
	}

	r.inds = r.inds[:0]
	r.tris = r.tris[:0]
	indices := it.Indices(mesh)
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if r.clipW[a] <= nearW || r.clipW[b] <= nearW || r.clipW[c] <= nearW {
			r.stats.Culled++
			continue
		}
		if culled(mat.CullFace, &r.verts[a], &r.verts[b], &r.verts[c]) {
			r.stats.Culled++
			continue
		}
		if mat.DepthTest {
			z := (r.clipZ[a] + r.clipZ[b] + r.clipZ[c]) / 3
			r.tris = append(r.tris, depthTri{z: z, a: a, b: b, c: c})
			continue
		}
		r.inds = append(r.inds, a, b, c)
	}
	if mat.DepthTest {
		// no depth buffer: paint back to front
		slices.SortStableFunc(r.tris, func(x, y depthTri) int {
			switch {
			case x.z > y.z:
				return -1
			case x.z < y.z:
				return 1
			}
			return 0
		})
		for _, t := range r.tris {
			r.inds = append(r.inds, t.a, t.b, t.c)
		}
	}
	if len(r.inds) == 0 {
		return
	}

	if sh := s.Shader(mat.Shader); sh != nil && sh.Valid() {
		var op ebiten.DrawTrianglesShaderOptions
		op.Blend = mat.Blend.EbitenBlend()
		op.Uniforms = mat.Uniforms()
		op.Images[0] = src
		for i := 1; i < len(op.Images) && i < mat.TextureCount; i++ {
			if t := s.Texture(mat.Texture(i)); t != nil {
				op.Images[i] = t.image
			}
		}
		target.DrawTrianglesShader32(r.verts, r.inds, sh.program, &op)
	} else {
		target.DrawTriangles32(r.verts, r.inds, src, &opts)
	}
	r.stats.DrawCalls++
	r.stats.Triangles += len(r.inds) / 3
}

// textureFor returns the image bound to unit 0 and sampling options. A
// material without textures samples a white pixel; a stale texture handle
// falls back to the checkerboard.
func (r *Renderer) textureFor(s *Scene, mat *Material) (*ebiten.Image, ebiten.DrawTrianglesOptions) {
	var op ebiten.DrawTrianglesOptions
	op.Blend = mat.Blend.EbitenBlend()
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha

	if mat.TextureCount == 0 {
		return ensureWhitePixel(), op
	}
	t := s.Texture(mat.Texture(0))
	if t == nil || t.image == nil {
		t = s.Texture(s.DefaultTexture())
	}
	op.Filter = t.Options.Filter.ebitenFilter(r.cfg.Render.LinearFilter)
	op.Address = t.Options.Wrap.ebitenAddress()
	return t.image, op
}

// culled reports whether the screen-space triangle faces away per mode.
// Counter-clockwise in clip space is front facing; the y flip to screen
// space reverses the sign of the area.
func culled(mode CullFace, a, b, c *ebiten.Vertex) bool {
	if mode == CullNone {
		return false
	}
	area := (b.DstX-a.DstX)*(c.DstY-a.DstY) - (c.DstX-a.DstX)*(b.DstY-a.DstY)
	if mode == CullBack {
		return area > 0
	}
	return area < 0
}
