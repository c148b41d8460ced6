// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"sort"

	"github.com/gviegas/framegraph/driver"
)

// attachmentStatus is one entry of a RAG vertex's
// attachmentStatus sequence: the access a single pass view
// makes to a single resource.
type attachmentStatus struct {
	resource ResID
	name     string
	status   AccessStatus
}

// subNode is a subpass appended to a parent raster/compute
// pass's chain.
type subNode struct {
	pass  PassID
	views []attachmentStatus
}

// ragVertex is one vertex of the Resource Access Graph: one
// per declared top-level pass (subpasses do not get their
// own vertex; they chain onto the parent, see subNode).
type ragVertex struct {
	pass     PassID
	views    []attachmentStatus // union across the vertex and its sub-nodes
	ownViews []attachmentStatus // the top-level pass's own declared views, set at creation
	subs     []subNode
	out      []int // indices into rag.verts
	in       []int
	culled   bool
}

// relVertex mirrors a ragVertex in the shadow Relation Graph
// used only for reorder. addEdge and removeEdge apply every
// edge change to both graphs, so the Relation Graph holds the
// same edges as the RAG, start and sink edges included.
type relVertex struct {
	out []int
	in  []int
}

// accessRecord tracks the most recent RAG vertex (and its
// status) to touch a resource, as the builder walks the
// render graph in declaration order.
type accessRecord struct {
	vertex    int
	status    AccessStatus
	lastWrite bool
}

// RAG is the built Resource Access Graph plus its shadow
// Relation Graph.
type RAG struct {
	rg       *RenderGraph
	verts    []ragVertex
	rel      []relVertex
	start    int // synthetic start vertex index
	sink     int // synthetic sink vertex index (present)
	order    []int // topological order over verts, set by BuildRAG and updated by Reorder
	Warnings []string
}

// noVertex stands for the absence of a RAG vertex index.
const (
	noVertex = -1
)

// BuildRAG walks rg in declaration order and builds a Resource
// Access Graph plus its shadow Relation Graph.
func BuildRAG(rg *RenderGraph, cfg DispatchConfig) (*RAG, error) {
	rag := &RAG{rg: rg}
	// Vertex 0 is the synthetic start; the synthetic sink is
	// appended after every declared pass has been visited.
	rag.verts = append(rag.verts, ragVertex{pass: -1})
	rag.rel = append(rag.rel, relVertex{})
	rag.start = 0

	// passToVertex maps a top-level PassID to its rag vertex
	// index; subpasses resolve to their parent's index.
	passToVertex := make(map[PassID]int, rg.Len())
	access := make(map[ResID]*accessRecord)

	hasPresent := false

	for i := range rg.passes {
		pid := PassID(i + 1)
		p := &rg.passes[i]

		if p.Kind == RasterSubpass || p.Kind == ComputeSubpass {
			parentIdx, ok := passToVertex[p.Parent]
			if !ok {
				return nil, newRGErr("subpass parent not yet visited: " + p.Name)
			}
			parent := &rag.verts[parentIdx]
			if len(parent.subs) == 0 {
				// The parent is logically subpass 0 of its own
				// chain; materialize that now, on the first child
				// subpass, so the chain's own attachments are
				// visible to AssembleDevicePass and to subpass
				// hazard detection the same way a declared
				// subNode's are.
				parent.subs = append(parent.subs, subNode{pass: parent.pass, views: parent.ownViews})
			}
			stats := computeStatuses(rg, p)
			parent.subs = append(parent.subs, subNode{pass: pid, views: stats})
			parent.views = mergeStatuses(parent.views, stats)
			passToVertex[pid] = parentIdx
			recordAccess(rag, parentIdx, stats, access)
			continue
		}

		if p.Kind == Present {
			hasPresent = true
		}

		idx := len(rag.verts)
		stats := computeStatuses(rg, p)
		rag.verts = append(rag.verts, ragVertex{pass: pid, views: stats, ownViews: stats})
		rag.rel = append(rag.rel, relVertex{})
		passToVertex[pid] = idx

		deps := recordAccess(rag, idx, stats, access)
		if len(deps) == 0 {
			addEdge(rag, rag.start, idx)
		}
	}

	rag.sink = len(rag.verts)
	rag.verts = append(rag.verts, ragVertex{pass: -1})
	rag.rel = append(rag.rel, relVertex{})

	if !hasPresent {
		rag.Warnings = append(rag.Warnings, "no present pass declared; synthesizing sink-only frame")
	}

	// Connect every vertex with out-degree 0 (other than the
	// sink itself) to the sink.
	for i := 1; i < rag.sink; i++ {
		if len(rag.verts[i].out) == 0 {
			addEdge(rag, i, rag.sink)
		}
	}

	if cfg.BranchCulling {
		cullDeadBranches(rag)
	}

	order, err := topoSort(rag)
	if err != nil {
		return nil, err
	}
	rag.order = order
	return rag, nil
}

// computeStatuses derives the AccessStatus of every view
// declared by p.
func computeStatuses(rg *RenderGraph, p *Pass) []attachmentStatus {
	stats := make([]attachmentStatus, len(p.Views))
	for i := range p.Views {
		v := &p.Views[i]
		res := rg.RG.At(v.Resource)
		acc := deriveAccess(p.Kind, v, res.Usage)
		layout := layoutFor(acc, res.Residency)
		stats[i] = attachmentStatus{
			resource: v.Resource,
			name:     v.Name,
			status:   AccessStatus{Access: acc, Layout: layout, Range: v.Range},
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].name < stats[j].name })
	return stats
}

// layoutFor derives the driver.Layout implied by an access
// flag and a resource's residency.
func layoutFor(a driver.Access, res Residency) driver.Layout {
	switch {
	case res == Backbuffer:
		return driver.LPresent
	case a&(driver.AColorWrite|driver.AColorRead) != 0:
		return driver.LColorTarget
	case a&(driver.ADSWrite) != 0:
		return driver.LDSTarget
	case a&(driver.ADSRead) != 0:
		return driver.LDSRead
	case a&driver.ACopyRead != 0:
		return driver.LCopySrc
	case a&driver.ACopyWrite != 0:
		return driver.LCopyDst
	case a&driver.AShaderRead != 0:
		return driver.LShaderRead
	default:
		return driver.LCommon
	}
}

// mergeStatuses merges b into a, keeping the result sorted
// by name (the parent vertex's view accumulates the union of
// every subpass status).
func mergeStatuses(a, b []attachmentStatus) []attachmentStatus {
	out := append(append([]attachmentStatus{}, a...), b...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// recordAccess runs the dependency check for every
// status declared at vertex idx, adding edges as needed, and
// returns the set of producer vertex indices idx now depends
// on.
func recordAccess(rag *RAG, idx int, stats []attachmentStatus, access map[ResID]*accessRecord) []int {
	var deps []int
	seen := make(map[int]bool)
	for _, st := range stats {
		rec, ok := access[st.resource]
		if !ok {
			access[st.resource] = &accessRecord{vertex: idx, status: st.status, lastWrite: !isReadOnly(st.status.Access)}
			continue
		}
		readAfterRead := isReadOnly(rec.status.Access) && isReadOnly(st.status.Access)
		if readAfterRead {
			if rec.vertex != idx && !seen[rec.vertex] {
				seen[rec.vertex] = true
				deps = append(deps, rec.vertex)
				addEdge(rag, rec.vertex, idx)
			}
			// lastStatus is not updated on read-after-read.
			continue
		}
		if rec.vertex != idx && !seen[rec.vertex] {
			seen[rec.vertex] = true
			deps = append(deps, rec.vertex)
			addEdge(rag, rec.vertex, idx)
		}
		access[st.resource] = &accessRecord{vertex: idx, status: st.status, lastWrite: !isReadOnly(st.status.Access)}
	}
	return deps
}

// addEdge adds a dependency edge from u to v in both the RAG
// and the shadow Relation Graph.
func addEdge(rag *RAG, u, v int) {
	for _, x := range rag.verts[u].out {
		if x == v {
			return
		}
	}
	rag.verts[u].out = append(rag.verts[u].out, v)
	rag.verts[v].in = append(rag.verts[v].in, u)
	rag.rel[u].out = append(rag.rel[u].out, v)
	rag.rel[v].in = append(rag.rel[v].in, u)
}

// removeEdge removes the edge u->v from both graphs, if present.
func removeEdge(rag *RAG, u, v int) {
	rag.verts[u].out = removeInt(rag.verts[u].out, v)
	rag.verts[v].in = removeInt(rag.verts[v].in, u)
	rag.rel[u].out = removeInt(rag.rel[u].out, v)
	rag.rel[v].in = removeInt(rag.rel[v].in, u)
}

func removeInt(s []int, x int) []int {
	for i, y := range s {
		if y == x {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// cullDeadBranches removes vertices with out-degree 0 and no
// side effects, recursively.
func cullDeadBranches(rag *RAG) {
	changed := true
	for changed {
		changed = false
		for i := 1; i < rag.sink; i++ {
			v := &rag.verts[i]
			if v.culled || len(v.out) != 0 {
				continue
			}
			if vertexHasSideEffects(rag, v) {
				continue
			}
			v.culled = true
			changed = true
			for _, u := range append([]int{}, v.in...) {
				removeEdge(rag, u, i)
			}
			v.views = nil
			v.subs = nil
		}
	}
}

// vertexHasSideEffects reports whether any resource touched
// by v (or its sub-nodes) has side effects.
func vertexHasSideEffects(rag *RAG, v *ragVertex) bool {
	for _, st := range v.views {
		if rag.rg.RG.At(st.resource).hasSideEffects() {
			return true
		}
	}
	return false
}

// topoSort computes a deterministic, stable-by-index
// topological order over the RAG using Kahn's algorithm.
func topoSort(rag *RAG) ([]int, error) {
	n := len(rag.verts)
	indeg := make([]int, n)
	for i := range rag.verts {
		if rag.verts[i].culled {
			continue
		}
		for _, o := range rag.verts[i].out {
			indeg[o]++
		}
	}
	var ready []int
	for i := 0; i < n; i++ {
		if !rag.verts[i].culled && indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)
	var order []int
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		var next []int
		for _, v := range rag.verts[u].out {
			indeg[v]--
			if indeg[v] == 0 {
				next = append(next, v)
			}
		}
		sort.Ints(next)
		ready = append(ready, next...)
		sort.Ints(ready)
	}
	cnt := 0
	for i := range rag.verts {
		if !rag.verts[i].culled {
			cnt++
		}
	}
	if len(order) != cnt {
		return nil, newRGErr("cycle detected in render graph")
	}
	return order, nil
}

// Order returns the current topological order over RAG vertex
// indices (start and sink included), reflecting any reorder
// pass that has run.
func (rag *RAG) Order() []int { return rag.order }
