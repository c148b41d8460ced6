// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/internal/bitvec"
)

// BarrierType classifies a Barrier as either a single
// full-sync point or one half of a split pair.
type BarrierType int

const (
	Full BarrierType = iota
	SplitBegin
	SplitEnd
)

// Barrier is a synchronization point for a single resource
// transition, resolved to a driver.Barrier once its gfx handle
// has been obtained from the barrier cache.
type Barrier struct {
	Resource ResID
	Type     BarrierType
	Begin    AccessStatus
	End      AccessStatus
	Gfx      *driver.Barrier
}

// SelfDependency marks a subpass that both writes and reads
// the same attachment within itself (e.g., programmable
// blending), which must be expressed as a subpass
// self-dependency rather than a pipeline barrier: a subpass
// may never contain a barrier of its own.
type SelfDependency struct {
	Resource ResID
	Status   AccessStatus
}

// subBarriers holds the self-dependencies and the
// cross-subpass wait requirement of a single subpass within a
// device pass.
//
// A subpass may never contain a pipeline barrier of its own
// (driver.CmdBuffer offers no call for one between NextSubpass
// boundaries); the only synchronization a subpass can express
// is driver.Subpass.Wait, set at render-pass creation time. So
// both a self-dependency (a subpass reading and writing the
// same attachment) and a hazard against an earlier subpass in
// the same chain resolve to Wait, not to a Barrier value.
type subBarriers struct {
	Self []SelfDependency
	Wait bool
}

// BarrierNode is the per-pass barrier output of the Barrier
// Builder.
type BarrierNode struct {
	BlockFront []Barrier
	BlockRear  []Barrier
	Subpass    []subBarriers
}

// BarrierPlan is the complete barrier output for a frame,
// indexed by RAG vertex index.
type BarrierPlan struct {
	nodes []BarrierNode
	cache map[barrierKey]*driver.Barrier
}

// Node returns the BarrierNode for the given RAG vertex index.
func (p *BarrierPlan) Node(vertex int) *BarrierNode { return &p.nodes[vertex] }

// barrierKey is the cache key for a resolved gfx barrier
// handle: the (prev, next) access/sync pair.
type barrierKey struct {
	syncBefore, syncAfter     driver.Sync
	accessBefore, accessAfter driver.Access
}

// isPassExecAdjacent reports whether two passes are adjacent
// in the final topological order, in which case a single Full
// barrier suffices instead of a split pair.
func isPassExecAdjacent(fromPos, toPos int) bool {
	d := fromPos - toPos
	if d < 0 {
		d = -d
	}
	return d <= 1
}

// BuildBarriers runs the three-pass barrier synthesis
// over rag, using its current topological order.
func BuildBarriers(rag *RAG) (*BarrierPlan, error) {
	plan := &BarrierPlan{
		nodes: make([]BarrierNode, len(rag.verts)),
		cache: make(map[barrierKey]*driver.Barrier),
	}

	pos := make([]int, len(rag.verts))
	for p, v := range rag.order {
		pos[v] = p
	}

	passA(rag, plan)
	passB(rag, plan, pos)
	passC(rag, plan)

	resolveHandles(plan)
	return plan, nil
}

// passA emits first-meet barriers: the first time a resource
// is touched in topological order, transition it from its
// prior state (cross-frame state for side-effect resources,
// ANone/LUndefined otherwise) to its first recorded status.
func passA(rag *RAG, plan *BarrierPlan) {
	var seen bitvec.V[uint64]
	maxRes := rag.rg.RG.Len()
	if maxRes > 0 {
		seen.Grow(1 + maxRes/64)
	}

	for _, idx := range rag.order {
		v := &rag.verts[idx]
		for _, st := range v.views {
			bit := int(st.resource) - 1
			if bit < 0 || seen.IsSet(bit) {
				continue
			}
			seen.Set(bit)

			res := rag.rg.RG.At(st.resource)
			var lastAccess driver.Access
			var lastLayout driver.Layout
			var btype BarrierType
			switch {
			case res.Residency == Backbuffer:
				lastAccess, lastLayout = rag.rg.RG.States(st.resource)
				btype = Full
			case res.Residency == Persistent:
				lastAccess, lastLayout = rag.rg.RG.States(st.resource)
				btype = SplitEnd
			default:
				lastAccess, lastLayout = driver.ANone, driver.LUndefined
				btype = Full
			}
			if isReadOnly(lastAccess) && isReadOnly(st.status.Access) {
				continue
			}
			b := Barrier{
				Resource: st.resource,
				Type:     btype,
				Begin:    AccessStatus{Access: lastAccess, Layout: lastLayout, Range: st.status.Range},
				End:      st.status,
			}
			plan.nodes[idx].BlockFront = append(plan.nodes[idx].BlockFront, b)
		}
	}
}

// pendingSplit tracks an open split-begin barrier for a
// resource, so a tighter (closer) pair can replace a looser
// one.
type pendingSplit struct {
	srcPos    int
	endPos    int
	endVertex int
	endIndex  int
}

// passB walks the RAG in BFS order from the start vertex,
// intersecting the resources touched by each edge's endpoints
// and emitting inter-pass or subpass barriers accordingly.
func passB(rag *RAG, plan *BarrierPlan, pos []int) {
	pending := make(map[ResID]*pendingSplit)

	visited := make(map[int]bool)
	queue := []int{rag.start}
	visited[rag.start] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range rag.verts[u].out {
			processEdge(rag, plan, pos, pending, u, v)
			if !visited[v] {
				visited[v] = true
				queue = append(queue, v)
			}
		}
	}

	// Subpass dependencies: a subpass that both reads and writes
	// the same resource within its own declared views (a
	// feedback loop) needs a self-dependency; a subpass that
	// touches a resource an earlier subpass in the same chain
	// already wrote needs to wait for that write. Subpasses
	// never get their own RAG vertex, so neither hazard is ever
	// visible to the BFS above; both are detected here, scoped
	// to a single vertex's own subpass chain, and resolved into
	// the one primitive a subpass can express: Wait.
	for idx := range rag.verts {
		v := &rag.verts[idx]
		if len(v.subs) == 0 {
			continue
		}
		plan.nodes[idx].Subpass = make([]subBarriers, len(v.subs))
		lastWrite := make(map[ResID]int) // resource -> subpass index that last wrote it
		for si, sn := range v.subs {
			byRes := make(map[ResID][]AccessStatus)
			for _, st := range sn.views {
				byRes[st.resource] = append(byRes[st.resource], st.status)
			}
			for res, stats := range byRes {
				var hasRead, hasWrite bool
				var writeStat AccessStatus
				for _, s := range stats {
					if isReadOnly(s.Access) {
						hasRead = true
					} else {
						hasWrite = true
						writeStat = s
					}
				}
				if hasRead && hasWrite {
					plan.nodes[idx].Subpass[si].Self = append(
						plan.nodes[idx].Subpass[si].Self,
						SelfDependency{Resource: res, Status: writeStat},
					)
					plan.nodes[idx].Subpass[si].Wait = true
				}
				if prev, ok := lastWrite[res]; ok && prev != si {
					plan.nodes[idx].Subpass[si].Wait = true
				}
				if hasWrite {
					lastWrite[res] = si
				}
			}
		}
	}
}

// processEdge handles the hazard between u and v for every
// resource they both touch.
func processEdge(rag *RAG, plan *BarrierPlan, pos []int, pending map[ResID]*pendingSplit, u, v int) {
	uViews := rag.verts[u].views
	vViews := rag.verts[v].views
	uByRes := make(map[ResID]AccessStatus, len(uViews))
	for _, st := range uViews {
		uByRes[st.resource] = st.status
	}
	for _, st := range vViews {
		lastStatus, ok := uByRes[st.resource]
		if !ok {
			continue
		}
		if isReadOnly(lastStatus.Access) && isReadOnly(st.status.Access) {
			continue
		}
		if isPassExecAdjacent(pos[u], pos[v]) {
			b := Barrier{
				Resource: st.resource,
				Type:     Full,
				Begin:    lastStatus,
				End:      st.status,
			}
			plan.nodes[u].BlockRear = append(plan.nodes[u].BlockRear, b)
			delete(pending, st.resource)
			continue
		}
		newSpan := pos[v] - pos[u]
		if old, ok := pending[st.resource]; ok {
			oldSpan := old.endPos - old.srcPos
			if newSpan >= oldSpan {
				// The previously recorded pair is already at
				// least as tight; keep it and skip this looser
				// candidate.
				continue
			}
			// The new pair is tighter: drop the stale end.
			removeBlockFront(plan, old.endVertex, old.endIndex)
		}
		begin := Barrier{Resource: st.resource, Type: SplitBegin, Begin: lastStatus, End: st.status}
		plan.nodes[u].BlockRear = append(plan.nodes[u].BlockRear, begin)
		end := Barrier{Resource: st.resource, Type: SplitEnd, Begin: lastStatus, End: st.status}
		plan.nodes[v].BlockFront = append(plan.nodes[v].BlockFront, end)
		pending[st.resource] = &pendingSplit{
			srcPos:    pos[u],
			endPos:    pos[v],
			endVertex: v,
			endIndex:  len(plan.nodes[v].BlockFront) - 1,
		}
	}
}

// removeBlockFront removes the barrier at index i of vertex's
// BlockFront slice, fixing up any pendingSplit bookkeeping is
// the caller's responsibility since only one split per
// resource is tracked at a time.
func removeBlockFront(plan *BarrierPlan, vertex, i int) {
	bf := plan.nodes[vertex].BlockFront
	plan.nodes[vertex].BlockFront = append(bf[:i], bf[i+1:]...)
}

// passC writes the final observed access state of every
// side-effect resource back into RG.states, and emits the
// rear present barrier for every backbuffer on the last pass
// that touches it.
func passC(rag *RAG, plan *BarrierPlan) {
	lastTouch := make(map[ResID]int)
	lastStatus := make(map[ResID]AccessStatus)
	for _, idx := range rag.order {
		for _, st := range rag.verts[idx].views {
			res := rag.rg.RG.At(st.resource)
			if !res.hasSideEffects() {
				continue
			}
			lastTouch[st.resource] = idx
			lastStatus[st.resource] = st.status
		}
	}
	for id, idx := range lastTouch {
		res := rag.rg.RG.At(id)
		st := lastStatus[id]
		rag.rg.RG.SetStates(id, st.Access, st.Layout)
		if res.Residency != Backbuffer {
			continue
		}
		b := Barrier{
			Resource: id,
			Type:     Full,
			Begin:    st,
			End:      AccessStatus{Access: driver.ANone, Layout: driver.LPresent, Range: st.Range},
		}
		plan.nodes[idx].BlockRear = append(plan.nodes[idx].BlockRear, b)
	}
}

// resolveHandles assigns each Barrier a cached *driver.Barrier
// gfx handle keyed on its (prev, next) access/sync pair, so
// identical transitions reuse the same device-side object.
func resolveHandles(plan *BarrierPlan) {
	resolve := func(b *Barrier) {
		key := barrierKey{
			syncBefore:   b.Begin.Sync,
			syncAfter:    b.End.Sync,
			accessBefore: b.Begin.Access,
			accessAfter:  b.End.Access,
		}
		gfx, ok := plan.cache[key]
		if !ok {
			gfx = &driver.Barrier{
				SyncBefore:   b.Begin.Sync,
				SyncAfter:    b.End.Sync,
				AccessBefore: b.Begin.Access,
				AccessAfter:  b.End.Access,
			}
			plan.cache[key] = gfx
		}
		b.Gfx = gfx
	}
	for i := range plan.nodes {
		n := &plan.nodes[i]
		for j := range n.BlockFront {
			resolve(&n.BlockFront[j])
		}
		for j := range n.BlockRear {
			resolve(&n.BlockRear[j])
		}
		// n.Subpass carries no Barrier values to resolve: its
		// hazards are expressed as driver.Subpass.Wait, consumed
		// directly by AssembleDevicePass.
	}
}
