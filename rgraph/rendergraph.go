// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import "github.com/gviegas/framegraph/driver"

// PassKind is the tag of a PassKind union: the eight pass
// variants the dispatcher understands.
type PassKind int

const (
	Raster PassKind = iota
	RasterSubpass
	Compute
	ComputeSubpass
	Copy
	Move
	Raytrace
	Present
)

// String implements fmt.Stringer.
func (k PassKind) String() string {
	switch k {
	case Raster:
		return "raster"
	case RasterSubpass:
		return "raster-subpass"
	case Compute:
		return "compute"
	case ComputeSubpass:
		return "compute-subpass"
	case Copy:
		return "copy"
	case Move:
		return "move"
	case Raytrace:
		return "raytrace"
	case Present:
		return "present"
	default:
		return "undefined"
	}
}

// MemoryAccess classifies how a View is used by a Pass.
type MemoryAccess int

const (
	ReadOnly MemoryAccess = iota
	WriteOnly
	ReadWrite
)

// View declares a single resource binding within a Pass.
type View struct {
	Name     string
	Resource ResID
	Range    Range
	Access   MemoryAccess

	// Rasterized indicates that this view is bound as a
	// render-pass attachment (as opposed to a descriptor
	// binding), which changes how its access flag is
	// derived.
	Rasterized bool

	// ColorSlot is not read by the dispatcher:
	// AssembleDevicePass gives color attachments their
	// slots in discovery order, whatever this value is.
	ColorSlot int

	// DepthStencil marks a rasterized view as the pass's
	// depth-stencil attachment.
	DepthStencil bool

	// MoveFrom is set on a view belonging to a Move pass
	// to name the source resource being renamed into
	// Resource.
	MoveFrom ResID
	IsMove   bool
}

// PassID identifies a Pass declared in a RenderGraph.
type PassID int

// Pass is a single declared unit of GPU work.
type Pass struct {
	Name   string
	Kind   PassKind
	Views  []View
	Parent PassID
	HasParent bool
}

// RenderGraph (RGD) is the user-declared DAG of passes, each
// with named resource views. Passes are recorded in
// declaration order; that order is the input to the RAG
// builder (C4).
//
// Create one with NewRenderGraph: the zero value has no
// ResourceGraph bound and AddPass panics on it.
type RenderGraph struct {
	RG     *ResourceGraph
	LG     *LayoutGraph
	passes []Pass
	byName map[string]PassID
}

// NewRenderGraph creates an initialized RenderGraph bound to
// the given ResourceGraph and LayoutGraph.
func NewRenderGraph(rg *ResourceGraph, lg *LayoutGraph) *RenderGraph {
	if lg == nil {
		lg = NewLayoutGraph()
	}
	return &RenderGraph{RG: rg, LG: lg, byName: make(map[string]PassID)}
}

// AddPass declares a new pass. Views must reference resources
// already present in RG.
func (g *RenderGraph) AddPass(p Pass) (PassID, error) {
	if _, ok := g.byName[p.Name]; ok {
		return 0, newRGErr("pass already declared: " + p.Name)
	}
	for i := range p.Views {
		if int(p.Views[i].Resource) < 1 || int(p.Views[i].Resource) > g.RG.Len() {
			return 0, newRGErr("undeclared resource view in pass: " + p.Name)
		}
	}
	if p.Kind == RasterSubpass || p.Kind == ComputeSubpass {
		if !p.HasParent {
			return 0, newRGErr("subpass without parent: " + p.Name)
		}
		parent := g.passes[p.Parent-1]
		if parent.Kind != Raster && parent.Kind != Compute {
			return 0, newRGErr("subpass parent is not a top-level pass: " + p.Name)
		}
	}
	g.passes = append(g.passes, p)
	id := PassID(len(g.passes))
	g.byName[p.Name] = id
	return id, nil
}

// Pass returns the Pass identified by id.
func (g *RenderGraph) Pass(id PassID) *Pass { return &g.passes[id-1] }

// PassByName looks up a declared pass by name.
func (g *RenderGraph) PassByName(name string) (PassID, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// Len returns the number of declared passes.
func (g *RenderGraph) Len() int { return len(g.passes) }

// All returns the declared passes in declaration order.
func (g *RenderGraph) All() []Pass { return g.passes }

// deriveAccess computes the driver.Access flag implied by a
// view's pass kind, memory access, Rasterized and
// DepthStencil fields. It does not consult LG, and usage is
// not read.
func deriveAccess(kind PassKind, v *View, usage driver.Usage) driver.Access {
	if v.Rasterized {
		if v.DepthStencil {
			if v.Access == ReadOnly {
				return driver.ADSRead
			}
			return driver.ADSRead | driver.ADSWrite
		}
		switch kind {
		case RasterSubpass, Raster:
			if v.Access == ReadOnly {
				return driver.AColorRead
			}
			if v.Access == ReadWrite {
				return driver.AColorRead | driver.AColorWrite
			}
			return driver.AColorWrite
		}
	}
	switch kind {
	case Copy:
		if v.Access == ReadOnly {
			return driver.ACopyRead
		}
		return driver.ACopyWrite
	case Move:
		// An invalid move degrades to a copy pass (move.go),
		// which carries the exact same access flags as a real
		// move: both read the source and write the destination
		// through the transfer stage.
		if v.Access == ReadOnly {
			return driver.ACopyRead
		}
		return driver.ACopyWrite
	case Present:
		return driver.ANone
	}
	switch v.Access {
	case ReadOnly:
		return driver.AShaderRead
	case WriteOnly:
		return driver.AShaderWrite
	default:
		return driver.AShaderRead | driver.AShaderWrite
	}
}
