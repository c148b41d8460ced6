// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package cull implements the scene-culling pipeline: per-query
// frustum/probe culling against model instances, and fan-out of
// the surviving instances into per-phase render queues.
//
// The package consumes scene nodes, transforms and bounds as
// plain data supplied by the caller; it does not itself own a
// scene graph, an octree, or any mesh/material asset (those are
// read-only inputs owned elsewhere).
package cull

import (
	"sort"

	"github.com/gviegas/framegraph/linear"
)

// SceneFlags classifies an Instance's participation in the
// various culling queries a frame may run.
type SceneFlags int

const (
	FlagCastShadow SceneFlags = 1 << iota
	FlagReflected
	FlagNone SceneFlags = 0
)

// Has reports whether f contains every bit of g.
func (f SceneFlags) Has(g SceneFlags) bool { return f&g == g }

// Instance is a single cullable model instance: its world-space
// bounds, the phase it participates in, and the data needed to
// classify and sort it once it survives culling.
type Instance struct {
	Bounds linear.AABB
	Pos    linear.V3
	Flags  SceneFlags
	Phase  int
	// Blend selects the transparent bucket instead of opaque.
	Blend bool
	// Instanced selects the instancing queue instead of the
	// depth-sorted queue, per the pass's own batching mode.
	Instanced bool
	// Lod is consulted by LOD pruning: an instance whose Lod is
	// greater than the query's MaxLod is skipped.
	Lod int
}

// CullingKey identifies a single culling query. Equal keys
// reuse the same CullResult within a frame.
type CullingKey struct {
	Camera     int
	Light      int
	Probe      int
	CastShadow bool
	LightLevel int // CSM cascade level; 0 when not a shadow query.
}

// CullResult is the outcome of a single culling query: the
// indices, into the Instance slice passed to Query, that
// survived.
type CullResult struct {
	Key     CullingKey
	Visible []int
}

// Octree is a caller-owned broad-phase spatial index, consulted
// by Query instead of a brute-force scan when set. The octree
// itself is a read-only input the culling core never builds or
// mutates (see package doc).
type Octree interface {
	// QueryFrustum returns the indices, into the Instance slice
	// passed to Query, of every instance the octree's own bounds
	// test admits for f. Query still applies CastShadow and LOD
	// filtering to the result; QueryFrustum need not.
	QueryFrustum(f *linear.Frustum) []int
}

// Culler interns culling queries by CullingKey so that two
// identical queries (e.g. two lights sharing a CSM cascade) run
// the visibility test only once per frame.
//
// The zero value is not usable; call NewCuller.
type Culler struct {
	cache map[CullingKey]*CullResult

	// Octree, if non-nil, is consulted by Query for any query
	// that has no probe attached (key.Probe == 0), in place of
	// the brute-force scan over every instance. Left nil to
	// always brute-force.
	Octree Octree
}

// NewCuller creates an empty, initialized Culler.
func NewCuller() *Culler {
	return &Culler{cache: make(map[CullingKey]*CullResult)}
}

// Reset drops every cached query, to be called once per frame
// before the first Query/QueryProbe call.
func (c *Culler) Reset() { clear(c.cache) }

// noLodLimit, passed as Query's maxLod, disables LOD pruning
// (as does any negative value); zero admits only Lod 0.
const noLodLimit = -1

// Query runs (or reuses the cached result of) a frustum-culling
// query against instances, honoring key.CastShadow (admits only
// FlagCastShadow instances) and maxLod (pass noLodLimit, or any
// negative value, to disable LOD pruning).
//
// When c.Octree is set and the query has no probe attached
// (key.Probe == 0), the octree supplies the candidate set instead
// of a brute-force scan over every instance; CastShadow and LOD
// filtering still run on whatever it returns.
//
// shadowMatrix, when non-nil, is the shadow-casting light's
// view-projection matrix: a planar-shadow query transforms each
// candidate's world bound through it before the frustum test,
// instead of testing the bound as-is (a cube/CSM shadow query
// passes nil here and tests the untransformed bound).
func (c *Culler) Query(key CullingKey, f *linear.Frustum, instances []Instance, maxLod int, shadowMatrix *linear.M4) *CullResult {
	if r, ok := c.cache[key]; ok {
		return r
	}

	admit := func(i int, checkFrustum bool) bool {
		inst := &instances[i]
		if key.CastShadow && !inst.Flags.Has(FlagCastShadow) {
			return false
		}
		if maxLod >= 0 && inst.Lod > maxLod {
			return false
		}
		if !checkFrustum {
			return true
		}
		bounds := &inst.Bounds
		if shadowMatrix != nil {
			var xformed linear.AABB
			xformed.Transform(shadowMatrix, &inst.Bounds)
			bounds = &xformed
		}
		return f.Intersects(bounds)
	}

	var visible []int
	if c.Octree != nil && key.Probe == 0 {
		for _, i := range c.Octree.QueryFrustum(f) {
			if admit(i, false) {
				visible = append(visible, i)
			}
		}
	} else {
		for i := range instances {
			if admit(i, true) {
				visible = append(visible, i)
			}
		}
	}

	r := &CullResult{Key: key, Visible: visible}
	c.cache[key] = r
	return r
}

// QueryProbe runs an AABB-vs-AABB visibility test against
// instances, for reflection probes whose capture volume is not
// a standard six-plane frustum (e.g. a box probe rather than a
// cube-map probe). The probe's own query key still dedups
// against an identical QueryProbe call.
func (c *Culler) QueryProbe(key CullingKey, probeBounds *linear.AABB, instances []Instance) *CullResult {
	if r, ok := c.cache[key]; ok {
		return r
	}
	var visible []int
	for i := range instances {
		inst := &instances[i]
		if !inst.Flags.Has(FlagReflected) {
			continue
		}
		if !probeBounds.Intersects(&inst.Bounds) {
			continue
		}
		visible = append(visible, i)
	}
	r := &CullResult{Key: key, Visible: visible}
	c.cache[key] = r
	return r
}

// QueueItem is a single surviving instance routed to the
// depth-sorted bucket of a RenderQueue.
type QueueItem struct {
	Instance int
	Dist     float32
}

// RenderQueue is the pair of buckets a phase's surviving
// instances are routed into: batched-by-instancing, and
// depth-sorted individual draws.
type RenderQueue struct {
	Instancing []int
	Sorted     []QueueItem
}

// BuildQueues classifies every instance named by visible into
// the opaque or blend RenderQueue, gated by phase (an instance
// whose Phase does not match is dropped), and within each queue
// routes to the Instancing or Sorted bucket per the instance's
// own Instanced flag. Sorted buckets are ordered front-to-back
// for opaque (cheapest early-out first) and back-to-front for
// blend (correct compositing order), using the signed distance
// (instPos - cameraPos)·cameraForward.
func BuildQueues(visible []int, instances []Instance, phase int, cameraPos, cameraForward *linear.V3) (opaque, blend RenderQueue) {
	for _, idx := range visible {
		inst := &instances[idx]
		if inst.Phase != phase {
			continue
		}
		q := &opaque
		if inst.Blend {
			q = &blend
		}
		if inst.Instanced {
			q.Instancing = append(q.Instancing, idx)
			continue
		}
		var d linear.V3
		d.Sub(&inst.Pos, cameraPos)
		q.Sorted = append(q.Sorted, QueueItem{Instance: idx, Dist: d.Dot(cameraForward)})
	}
	sort.Slice(opaque.Sorted, func(i, j int) bool { return opaque.Sorted[i].Dist < opaque.Sorted[j].Dist })
	sort.Slice(blend.Sorted, func(i, j int) bool { return blend.Sorted[i].Dist > blend.Sorted[j].Dist })
	return
}
