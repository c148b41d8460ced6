// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/internal/bitm"
)

// Dimension classifies a Resource's shape.
type Dimension int

const (
	DimBuffer Dimension = iota
	DimTex1D
	DimTex2D
	DimTex3D
)

// Residency classifies how a Resource's storage behaves
// across frames.
type Residency int

const (
	// Managed resources are transient: the dispatcher is
	// free to reuse their storage within a frame.
	Managed Residency = iota

	// Persistent resources retain their access state
	// across frames (e.g., ping-pong buffers).
	Persistent

	// Memoryless resources never leave on-chip memory and
	// must be produced and consumed by adjacent passes.
	Memoryless

	// Backbuffer identifies a swapchain image, which must
	// end every frame in driver.LPresent layout.
	Backbuffer
)

// hasSideEffects reports whether r must have its final
// access state persisted across frames.
func (r Residency) hasSideEffects() bool {
	return r == Persistent || r == Backbuffer
}

// Range describes a sub-region of a Resource.
// For buffers, Width carries the byte length and FirstSlice
// the byte offset; the remaining fields are unused.
type Range struct {
	Width      int
	Height     int
	FirstSlice int
	NumSlices  int
	MipLevel   int
	LevelCount int
	PlaneSlice int
}

// AccessStatus is a GPU access scope over a Range.
type AccessStatus struct {
	Access driver.Access
	Layout driver.Layout
	Sync   driver.Sync
	Range  Range
}

// isReadOnly reports whether a holds no write bit.
func isReadOnly(a driver.Access) bool {
	const writeMask = driver.AColorWrite | driver.ADSWrite |
		driver.AResolveWrite | driver.ACopyWrite |
		driver.AShaderWrite | driver.AAnyWrite
	return a&writeMask == 0
}

// Resource is a logical GPU resource (texture or buffer)
// registered in a ResourceGraph.
type Resource struct {
	Name      string
	Dim       Dimension
	Format    driver.PixelFmt
	Width     int
	Height    int
	Depth     int
	Mips      int
	Samples   int
	Usage     driver.Usage
	Residency Residency

	// states holds the last-observed access flags for
	// side-effect resources, valid across frames.
	states       driver.Access
	statesLayout driver.Layout
}

// hasSideEffects reports whether r's access state must
// be persisted across frames.
func (r *Resource) hasSideEffects() bool { return r.Residency.hasSideEffects() }

// ResID identifies a Resource registered in a ResourceGraph.
type ResID int

// ResourceGraph (RG) is the registry of every logical
// resource known to the dispatcher, along with each
// resource's last-known cross-frame access state.
//
// The zero value is an empty, usable graph.
type ResourceGraph struct {
	res    []Resource
	resID  bitm.Bitm[uint32]
	byName map[string]ResID
}

// NewResourceGraph creates an initialized, empty ResourceGraph.
func NewResourceGraph() *ResourceGraph {
	return &ResourceGraph{byName: make(map[string]ResID)}
}

// Declare registers a new resource and returns its ResID.
// It returns an error if a resource with the same name was
// already declared.
func (g *ResourceGraph) Declare(r Resource) (ResID, error) {
	if g.byName == nil {
		g.byName = make(map[string]ResID)
	}
	if _, ok := g.byName[r.Name]; ok {
		return 0, newRGErr("resource already declared: " + r.Name)
	}
	if g.resID.Rem() == 0 {
		switch x := g.resID.Len(); {
		case x > 0:
			cnt := 1 + (x-31)/32
			g.res = append(g.res, make([]Resource, x)...)
			g.resID.Grow(cnt)
		default:
			g.res = append(g.res, make([]Resource, 32)...)
			g.resID.Grow(1)
		}
	}
	idx, ok := g.resID.Search()
	if !ok {
		panic("unexpected failure from bitm.Bitm.Search")
	}
	g.resID.Set(idx)
	g.res[idx] = r
	id := ResID(idx + 1)
	g.byName[r.Name] = id
	return id, nil
}

// Lookup returns the ResID of a previously declared resource
// by name.
func (g *ResourceGraph) Lookup(name string) (ResID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// At returns a pointer to the Resource identified by id.
// The pointer is invalidated by further calls to Declare.
func (g *ResourceGraph) At(id ResID) *Resource {
	return &g.res[id-1]
}

// States returns the persisted cross-frame access state of
// the identified resource.
func (g *ResourceGraph) States(id ResID) (driver.Access, driver.Layout) {
	r := g.At(id)
	return r.states, r.statesLayout
}

// SetStates sets the persisted cross-frame access state of
// the identified resource. It is called by the barrier
// builder's finalization pass.
func (g *ResourceGraph) SetStates(id ResID, a driver.Access, l driver.Layout) {
	r := g.At(id)
	r.states = a
	r.statesLayout = l
}

// Len returns the number of resources currently declared.
func (g *ResourceGraph) Len() int { return len(g.byName) }
