package smol

import (
	"fmt"
	"slices"

	"github.com/phanxgames/smol/handle"
)

// Primitive is the topology of a mesh's index list.
type Primitive uint8

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveLines
	PrimitivePoints
)

// MeshData is the CPU-side description of a mesh. Colors, UV0, UV1 and
// Normals are optional; when present they must match len(Positions).
type MeshData struct {
	Primitive Primitive
	Positions []Vec3
	Indices   []uint32
	Colors    []Color
	UV0       []Vec2
	UV1       []Vec2
	Normals   []Vec3
}

// Validate checks attribute lengths and index bounds.
func (d *MeshData) Validate() error {
	n := len(d.Positions)
	if len(d.Colors) != 0 && len(d.Colors) != n {
		return fmt.Errorf("smol: mesh has %d colors for %d positions", len(d.Colors), n)
	}
	if len(d.UV0) != 0 && len(d.UV0) != n {
		return fmt.Errorf("smol: mesh has %d uv0 for %d positions", len(d.UV0), n)
	}
	if len(d.UV1) != 0 && len(d.UV1) != n {
		return fmt.Errorf("smol: mesh has %d uv1 for %d positions", len(d.UV1), n)
	}
	if len(d.Normals) != 0 && len(d.Normals) != n {
		return fmt.Errorf("smol: mesh has %d normals for %d positions", len(d.Normals), n)
	}
	if d.Primitive == PrimitiveTriangles && len(d.Indices)%3 != 0 {
		return fmt.Errorf("smol: triangle mesh index count %d is not a multiple of 3", len(d.Indices))
	}
	for i, idx := range d.Indices {
		if int(idx) >= n {
			return fmt.Errorf("smol: mesh index %d at %d out of range (%d positions)", idx, i, n)
		}
	}
	return nil
}

// Bounds returns the axis-aligned box enclosing the positions.
func (d *MeshData) Bounds() (lo, hi Vec3) {
	if len(d.Positions) == 0 {
		return Vec3{}, Vec3{}
	}
	lo, hi = d.Positions[0], d.Positions[0]
	for _, p := range d.Positions[1:] {
		lo = Vec3{min(lo.X, p.X), min(lo.Y, p.Y), min(lo.Z, p.Z)}
		hi = Vec3{max(hi.X, p.X), max(hi.Y, p.Y), max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Mesh is geometry owned by a Scene. Dynamic meshes may be replaced with
// UpdateMesh; static meshes may not.
type Mesh struct {
	MeshData
	Dynamic bool

	version uint32 // bumped on every update
}

// Version changes every time the mesh data is replaced.
func (m *Mesh) Version() uint32 { return m.version }

// CreateMesh copies data into a new mesh.
func (s *Scene) CreateMesh(dynamic bool, data MeshData) (handle.Handle[Mesh], error) {
	if err := data.Validate(); err != nil {
		return handle.Invalid[Mesh](), err
	}
	return s.meshes.Add(Mesh{MeshData: cloneMeshData(data), Dynamic: dynamic, version: 1}), nil
}

// UpdateMesh replaces a dynamic mesh's data.
func (s *Scene) UpdateMesh(h handle.Handle[Mesh], data MeshData) error {
	m := s.meshes.Lookup(h)
	if m == nil {
		return fmt.Errorf("smol: failed to update mesh %v: %w", h, ErrInvalidHandle)
	}
	if !m.Dynamic {
		return ErrStaticMesh
	}
	if err := data.Validate(); err != nil {
		return err
	}
	m.setData(data)
	return nil
}

// setData reuses m's backing arrays where they are large enough.
func (m *Mesh) setData(d MeshData) {
	m.Primitive = d.Primitive
	m.Positions = append(m.Positions[:0], d.Positions...)
	m.Indices = append(m.Indices[:0], d.Indices...)
	m.Colors = append(m.Colors[:0], d.Colors...)
	m.UV0 = append(m.UV0[:0], d.UV0...)
	m.UV1 = append(m.UV1[:0], d.UV1...)
	m.Normals = append(m.Normals[:0], d.Normals...)
	m.version++
}

// Mesh returns the mesh for h, or nil if h is stale.
func (s *Scene) Mesh(h handle.Handle[Mesh]) *Mesh {
	return s.meshes.Lookup(h)
}

// DestroyMesh invalidates h.
func (s *Scene) DestroyMesh(h handle.Handle[Mesh]) bool {
	return s.meshes.Remove(h)
}

func cloneMeshData(d MeshData) MeshData {
	return MeshData{
		Primitive: d.Primitive,
		Positions: slices.Clone(d.Positions),
		Indices:   slices.Clone(d.Indices),
		Colors:    slices.Clone(d.Colors),
		UV0:       slices.Clone(d.UV0),
		UV1:       slices.Clone(d.UV1),
		Normals:   slices.Clone(d.Normals),
	}
}

// Renderable pairs a material with a mesh. Many mesh nodes may share one.
type Renderable struct {
	Material handle.Handle[Material]
	Mesh     handle.Handle[Mesh]
}

// CreateRenderable stores a material/mesh association.
func (s *Scene) CreateRenderable(material handle.Handle[Material], mesh handle.Handle[Mesh]) handle.Handle[Renderable] {
	return s.renderables.Add(Renderable{Material: material, Mesh: mesh})
}

// Renderable returns the renderable for h, or nil if h is stale.
func (s *Scene) Renderable(h handle.Handle[Renderable]) *Renderable {
	return s.renderables.Lookup(h)
}

// DestroyRenderable invalidates h. The material and mesh are kept.
func (s *Scene) DestroyRenderable(h handle.Handle[Renderable]) bool {
	return s.renderables.Remove(h)
}
