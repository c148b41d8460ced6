// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

// AccelerationStructureKind distinguishes the two raytracing
// acceleration-structure levels.
type AccelerationStructureKind int

const (
	// BLAS (bottom-level) holds the geometry of a single mesh.
	BLAS AccelerationStructureKind = iota

	// TLAS (top-level) holds per-instance transforms and
	// references to BLAS entries.
	TLAS
)

// Instance describes a single TLAS entry.
//
// CustomIdx must be supplied by the caller that builds the
// instance list (e.g. a tag assigned when the drawable was
// registered); it is never derived by looking up a node's
// name, since node names are not guaranteed unique or stable
// across a scene's lifetime.
type Instance struct {
	Blas       AccelerationStructure
	Transform  [16]float32
	Mask       uint8
	CustomIdx  uint32
	ShaderSlot uint32
}

// AccelerationStructure is the interface through which the
// dispatcher's resource-graph vocabulary extends to raytracing
// acceleration structures: building, updating, compacting and
// destroying an acceleration structure is left entirely to the
// concrete backend.
//
// An AccelerationStructure is not a Resource: it has no ResID,
// does not appear in the RAG, and no barrier or persisted
// state is produced for it.
type AccelerationStructure interface {
	// Kind reports whether this is a BLAS or TLAS.
	Kind() AccelerationStructureKind

	// Build constructs the acceleration structure from scratch.
	// For a TLAS, instances supplies the instance list.
	Build(instances []Instance) error

	// Update refits an already-built acceleration structure
	// in place, without changing its topology. It is only
	// valid if the structure was built with update support.
	Update(instances []Instance) error

	// Compact produces a smaller copy of the structure after
	// its true size is known post-build.
	Compact() (AccelerationStructure, error)

	// SetInfo attaches opaque backend-specific build flags.
	SetInfo(info any)

	// Destroy releases the structure's backing storage.
	Destroy()
}
