package smol

import "github.com/phanxgames/smol/handle"

// Transform holds a node's local position, Euler rotation (degrees) and
// scale, plus a weak reference to its parent node.
//
// The local matrix is cached and recomputed lazily as T·R·S. World matrices
// are produced by Scene.UpdateTransforms, which resolves parents before
// children once per frame; WorldMatrix returns the result of the last pass.
type Transform struct {
	position Vec3
	rotation Vec3
	scale    Vec3
	parent   handle.Handle[Node]

	local Mat4
	world Mat4

	dirty bool // local matrix stale
	moved bool // world matrix stale

	// per-frame resolution state, owned by Scene.UpdateTransforms
	frame     uint64
	changed   bool
	hadParent bool
}

// NewTransform returns a transform with the given local values and no parent.
func NewTransform(position, rotation, scale Vec3) Transform {
	return Transform{
		position: position,
		rotation: rotation,
		scale:    scale,
		parent:   handle.Invalid[Node](),
		local:    Identity(),
		world:    Identity(),
		dirty:    true,
		moved:    true,
	}
}

// IdentityTransform returns a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return NewTransform(Vec3{}, Vec3{}, Vec3{1, 1, 1})
}

// At returns an identity-rotation, unit-scale transform at position p.
func At(p Vec3) Transform {
	return NewTransform(p, Vec3{}, Vec3{1, 1, 1})
}

// WithParent returns a copy of t parented to p.
func (t Transform) WithParent(p handle.Handle[Node]) Transform {
	t.parent = p
	t.moved = true
	return t
}

// Position returns the local position.
func (t *Transform) Position() Vec3 { return t.position }

// Rotation returns the local Euler rotation in degrees.
func (t *Transform) Rotation() Vec3 { return t.rotation }

// Scale returns the local scale.
func (t *Transform) Scale() Vec3 { return t.scale }

// Parent returns the parent handle. It may be stale.
func (t *Transform) Parent() handle.Handle[Node] { return t.parent }

// SetPosition sets the local position and marks the transform dirty.
func (t *Transform) SetPosition(p Vec3) {
	t.position = p
	t.markDirty()
}

// SetRotation sets the local Euler rotation in degrees and marks the
// transform dirty.
func (t *Transform) SetRotation(r Vec3) {
	t.rotation = r
	t.markDirty()
}

// SetScale sets the local scale and marks the transform dirty.
func (t *Transform) SetScale(s Vec3) {
	t.scale = s
	t.markDirty()
}

// Translate moves the transform by d.
func (t *Transform) Translate(d Vec3) {
	t.SetPosition(t.position.Add(d))
}

// Rotate adds d degrees to the Euler rotation.
func (t *Transform) Rotate(d Vec3) {
	t.SetRotation(t.rotation.Add(d))
}

// Dirty reports whether the cached local matrix is stale.
func (t *Transform) Dirty() bool { return t.dirty }

func (t *Transform) markDirty() {
	t.dirty = true
	t.moved = true
}

// LocalMatrix returns T·R·S, recomputing it if dirty.
func (t *Transform) LocalMatrix() Mat4 {
	if t.dirty {
		t.local = computeLocalMatrix(t.position, t.rotation, t.scale)
		t.dirty = false
	}
	return t.local
}

// WorldMatrix returns the world matrix computed by the last transform pass.
func (t *Transform) WorldMatrix() Mat4 { return t.world }

// WorldPosition returns the translation of the world matrix.
func (t *Transform) WorldPosition() Vec3 { return t.world.Position() }

func computeLocalMatrix(position, rotation, scale Vec3) Mat4 {
	m := Scaling(scale)
	if rotation != (Vec3{}) {
		m = RotationEuler(rotation).Mul(m)
	}
	m[12], m[13], m[14] = position.X, position.Y, position.Z
	return m
}
