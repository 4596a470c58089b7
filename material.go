package smol

import (
	"fmt"

	"github.com/phanxgames/smol/handle"
)

// MaxMaterialTextures is the number of texture units a material can bind.
const MaxMaterialTextures = 6

// CullFace selects which triangle winding the renderer discards.
type CullFace uint8

const (
	CullNone CullFace = iota
	CullBack
	CullFront
)

// ParamType is the type of a material parameter.
type ParamType uint8

const (
	ParamFloat ParamType = iota
	ParamVec2
	ParamVec3
	ParamVec4
	ParamInt
)

// MaterialParam is a named shader input. Vector values live in Value;
// integers in Int.
type MaterialParam struct {
	Name  string
	Type  ParamType
	Value [4]float32
	Int   int32
}

// MaterialDesc describes a material to create.
type MaterialDesc struct {
	Name        string
	Shader      handle.Handle[Shader] // nil handle = built-in textured pipeline
	Textures    []handle.Handle[Texture]
	RenderQueue RenderQueue
	Blend       BlendMode
	DepthTest   bool
	CullFace    CullFace
	Params      []MaterialParam
}

// Material binds a shader, textures and parameters.
type Material struct {
	Name         string
	Shader       handle.Handle[Shader]
	Textures     [MaxMaterialTextures]handle.Handle[Texture]
	TextureCount int
	RenderQueue  RenderQueue
	Blend        BlendMode
	DepthTest    bool
	CullFace     CullFace

	params []MaterialParam
}

// Texture returns the handle bound to unit i, or the invalid handle.
func (m *Material) Texture(i int) handle.Handle[Texture] {
	if i < 0 || i >= m.TextureCount {
		return handle.Invalid[Texture]()
	}
	return m.Textures[i]
}

// Params returns the material parameters in insertion order.
func (m *Material) Params() []MaterialParam { return m.params }

// Param returns the parameter called name.
func (m *Material) Param(name string) (MaterialParam, bool) {
	for _, p := range m.params {
		if p.Name == name {
			return p, true
		}
	}
	return MaterialParam{}, false
}

func (m *Material) set(p MaterialParam) {
	for i := range m.params {
		if m.params[i].Name == p.Name {
			m.params[i] = p
			return
		}
	}
	m.params = append(m.params, p)
}

// SetFloat sets a float uniform.
func (m *Material) SetFloat(name string, v float32) {
	m.set(MaterialParam{Name: name, Type: ParamFloat, Value: [4]float32{v}})
}

// SetVec2 sets a vec2 uniform.
func (m *Material) SetVec2(name string, v Vec2) {
	m.set(MaterialParam{Name: name, Type: ParamVec2, Value: [4]float32{v.X, v.Y}})
}

// SetVec3 sets a vec3 uniform.
func (m *Material) SetVec3(name string, v Vec3) {
	m.set(MaterialParam{Name: name, Type: ParamVec3, Value: [4]float32{v.X, v.Y, v.Z}})
}

// SetVec4 sets a vec4 uniform.
func (m *Material) SetVec4(name string, v Vec4) {
	m.set(MaterialParam{Name: name, Type: ParamVec4, Value: [4]float32{v.X, v.Y, v.Z, v.W}})
}

// SetInt sets an int uniform.
func (m *Material) SetInt(name string, v int32) {
	m.set(MaterialParam{Name: name, Type: ParamInt, Int: v})
}

// Uniforms returns the parameters in the form DrawTrianglesShader32 expects.
func (m *Material) Uniforms() map[string]any {
	if len(m.params) == 0 {
		return nil
	}
	u := make(map[string]any, len(m.params))
	for _, p := range m.params {
		switch p.Type {
		case ParamFloat:
			u[p.Name] = p.Value[0]
		case ParamVec2:
			u[p.Name] = []float32{p.Value[0], p.Value[1]}
		case ParamVec3:
			u[p.Name] = []float32{p.Value[0], p.Value[1], p.Value[2]}
		case ParamVec4:
			u[p.Name] = []float32{p.Value[0], p.Value[1], p.Value[2], p.Value[3]}
		case ParamInt:
			u[p.Name] = p.Int
		}
	}
	return u
}

// CreateMaterial stores a material. Handles in desc are not resolved until
// draw time.
func (s *Scene) CreateMaterial(desc MaterialDesc) (handle.Handle[Material], error) {
	if len(desc.Textures) > MaxMaterialTextures {
		return handle.Invalid[Material](), fmt.Errorf("smol: material %q binds %d textures, max %d",
			desc.Name, len(desc.Textures), MaxMaterialTextures)
	}
	m := Material{
		Name:         desc.Name,
		Shader:       desc.Shader,
		TextureCount: len(desc.Textures),
		RenderQueue:  desc.RenderQueue,
		Blend:        desc.Blend,
		DepthTest:    desc.DepthTest,
		CullFace:     desc.CullFace,
	}
	if m.RenderQueue == 0 {
		m.RenderQueue = QueueOpaque
	}
	for i := range m.Textures {
		m.Textures[i] = handle.Invalid[Texture]()
	}
	copy(m.Textures[:], desc.Textures)
	for _, p := range desc.Params {
		m.set(p)
	}
	return s.materials.Add(m), nil
}

// Material returns the material for h, or nil if h is stale.
func (s *Scene) Material(h handle.Handle[Material]) *Material {
	return s.materials.Lookup(h)
}

// DestroyMaterial invalidates h. Textures and shader are not released.
func (s *Scene) DestroyMaterial(h handle.Handle[Material]) bool {
	return s.materials.Remove(h)
}

// materialTextureSize returns the pixel size of the material's first
// texture, falling back to the checkerboard size.
func (s *Scene) materialTextureSize(m *Material) Vec2 {
	if t := s.textures.Lookup(m.Texture(0)); t != nil {
		return t.Size()
	}
	return Vec2{float32(s.cfg.Render.CheckerWidth), float32(s.cfg.Render.CheckerHeight)}
}
