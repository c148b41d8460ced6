// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package linear

import "testing"

func TestAABBUnion(t *testing.T) {
	a := AABB{Min: V3{-1, -1, -1}, Max: V3{1, 1, 1}}
	b := AABB{Min: V3{0, 0, 0}, Max: V3{2, 2, 2}}
	var u AABB
	u.Union(&a, &b)
	if u.Min != (V3{-1, -1, -1}) || u.Max != (V3{2, 2, 2}) {
		t.Fatalf("AABB.Union\nhave %v %v\nwant [-1 -1 -1] [2 2 2]", u.Min, u.Max)
	}
}

func TestAABBContainsAndIntersects(t *testing.T) {
	a := AABB{Min: V3{-1, -1, -1}, Max: V3{1, 1, 1}}
	if !a.Contains(&V3{0, 0, 0}) {
		t.Fatal("AABB.Contains: expected origin to be inside")
	}
	if a.Contains(&V3{2, 0, 0}) {
		t.Fatal("AABB.Contains: expected (2,0,0) to be outside")
	}
	b := AABB{Min: V3{5, 5, 5}, Max: V3{6, 6, 6}}
	if a.Intersects(&b) {
		t.Fatal("AABB.Intersects: expected disjoint boxes to not intersect")
	}
	c := AABB{Min: V3{0.5, 0.5, 0.5}, Max: V3{2, 2, 2}}
	if !a.Intersects(&c) {
		t.Fatal("AABB.Intersects: expected overlapping boxes to intersect")
	}
}

func TestAABBTransformIdentity(t *testing.T) {
	var m M4
	m.I()
	a := AABB{Min: V3{-1, -2, -3}, Max: V3{1, 2, 3}}
	var b AABB
	b.Transform(&m, &a)
	if b.Min != a.Min || b.Max != a.Max {
		t.Fatalf("AABB.Transform (identity)\nhave %v %v\nwant %v %v", b.Min, b.Max, a.Min, a.Max)
	}
}

func TestFrustumIntersects(t *testing.T) {
	// An orthographic-like projection: identity view-proj means
	// the NDC cube [-1,1]^3 in all three axes defines the
	// frustum under the Gribb/Hartmann extraction.
	var vp M4
	vp.I()
	var f Frustum
	f.Extract(&vp)

	inside := AABB{Min: V3{-0.5, -0.5, -0.5}, Max: V3{0.5, 0.5, 0.5}}
	if !f.Intersects(&inside) {
		t.Fatal("Frustum.Intersects: expected a box inside the unit cube to intersect")
	}

	outside := AABB{Min: V3{2, 2, 2}, Max: V3{3, 3, 3}}
	if f.Intersects(&outside) {
		t.Fatal("Frustum.Intersects: expected a box far outside the unit cube to not intersect")
	}
}
