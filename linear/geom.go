// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package linear

import "math"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min V3
	Max V3
}

// Set sets b to the box defined by min and max.
func (b *AABB) Set(min, max *V3) { b.Min, b.Max = *min, *max }

// Center sets c to the center of b.
func (b *AABB) Center(c *V3) {
	for i := range c {
		c[i] = (b.Min[i] + b.Max[i]) * 0.5
	}
}

// Extent sets e to the half-extent of b.
func (b *AABB) Extent(e *V3) {
	for i := range e {
		e[i] = (b.Max[i] - b.Min[i]) * 0.5
	}
}

// Union sets b to the smallest box containing both l and r.
func (b *AABB) Union(l, r *AABB) {
	for i := range b.Min {
		b.Min[i] = min(l.Min[i], r.Min[i])
		b.Max[i] = max(l.Max[i], r.Max[i])
	}
}

// Transform sets b to contain the world-space box of a
// transformed by m, using the standard eight-corner expansion.
func (b *AABB) Transform(m *M4, a *AABB) {
	var center, extent V3
	a.Center(&center)
	a.Extent(&extent)
	var newCenter, newExtent V3
	for i := 0; i < 3; i++ {
		newCenter[i] = m[3][i]
		var e float32
		for j := 0; j < 3; j++ {
			newCenter[i] += m[j][i] * center[j]
			e += float32(math.Abs(float64(m[j][i]))) * extent[j]
		}
		newExtent[i] = e
	}
	b.Min.Sub(&newCenter, &newExtent)
	b.Max.Add(&newCenter, &newExtent)
}

// Contains reports whether v lies within b (inclusive).
func (b *AABB) Contains(v *V3) bool {
	for i := range v {
		if v[i] < b.Min[i] || v[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether b and a overlap.
func (b *AABB) Intersects(a *AABB) bool {
	for i := range b.Min {
		if b.Min[i] > a.Max[i] || b.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

// Plane is a plane in Hessian normal form: Normal·x + D = 0.
type Plane struct {
	Normal V3
	D      float32
}

// Norm sets p to q normalized (unit normal, D scaled to match).
func (p *Plane) Norm(q *Plane) {
	l := q.Normal.Len()
	p.Normal.Scale(1/l, &q.Normal)
	p.D = q.D / l
}

// Dist returns the signed distance from v to p.
func (p *Plane) Dist(v *V3) float32 { return p.Normal.Dot(v) + p.D }

// Frustum is a set of six inward-facing planes: left, right,
// bottom, top, near, far, in that order.
type Frustum struct {
	Planes [6]Plane
}

// Extract derives f's planes from a combined view-projection
// matrix using the Gribb/Hartmann plane-extraction method.
func (f *Frustum) Extract(viewProj *M4) {
	m := viewProj
	raw := [6]Plane{
		// left: row3 + row0
		{V3{m[0][3] + m[0][0], m[1][3] + m[1][0], m[2][3] + m[2][0]}, m[3][3] + m[3][0]},
		// right: row3 - row0
		{V3{m[0][3] - m[0][0], m[1][3] - m[1][0], m[2][3] - m[2][0]}, m[3][3] - m[3][0]},
		// bottom: row3 + row1
		{V3{m[0][3] + m[0][1], m[1][3] + m[1][1], m[2][3] + m[2][1]}, m[3][3] + m[3][1]},
		// top: row3 - row1
		{V3{m[0][3] - m[0][1], m[1][3] - m[1][1], m[2][3] - m[2][1]}, m[3][3] - m[3][1]},
		// near: row3 + row2
		{V3{m[0][3] + m[0][2], m[1][3] + m[1][2], m[2][3] + m[2][2]}, m[3][3] + m[3][2]},
		// far: row3 - row2
		{V3{m[0][3] - m[0][2], m[1][3] - m[1][2], m[2][3] - m[2][2]}, m[3][3] - m[3][2]},
	}
	for i := range f.Planes {
		f.Planes[i].Norm(&raw[i])
	}
}

// Intersects reports whether any part of b lies within f,
// using the standard positive-vertex AABB-vs-plane test (a
// false negative is impossible; a false positive can only
// occur for the degenerate case of box corners straddling two
// planes simultaneously, which is acceptable for a culling
// pre-pass per the original's own conservative test).
func (f *Frustum) Intersects(b *AABB) bool {
	for i := range f.Planes {
		p := &f.Planes[i]
		var pos V3
		for j := 0; j < 3; j++ {
			if p.Normal[j] >= 0 {
				pos[j] = b.Max[j]
			} else {
				pos[j] = b.Min[j]
			}
		}
		if p.Dist(&pos) < 0 {
			return false
		}
	}
	return true
}
