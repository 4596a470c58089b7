package smol

import "errors"

var (
	// ErrInvalidHandle is returned when a handle does not resolve.
	ErrInvalidHandle = errors.New("smol: invalid handle")

	// ErrOutOfCapacity is returned when a batcher has reached its maximum
	// capacity and quads had to be dropped.
	ErrOutOfCapacity = errors.New("smol: out of capacity")

	// ErrCycle is returned when a parent assignment would make a node its
	// own ancestor.
	ErrCycle = errors.New("smol: parent cycle")

	// ErrBadFont is returned for malformed font data.
	ErrBadFont = errors.New("smol: bad font data")

	// ErrStaticMesh is returned when updating a mesh created as static.
	ErrStaticMesh = errors.New("smol: cannot update a static mesh")
)
