// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"testing"

	"github.com/gviegas/framegraph/driver"
)

// buildStraightLine declares a three-pass pipeline:
// gbuffer writes color -> lighting reads color, writes hdr ->
// present reads hdr (a Backbuffer).
func buildStraightLine(t *testing.T) *RenderGraph {
	t.Helper()
	rg := NewResourceGraph()
	color, _ := rg.Declare(Resource{Name: "color", Dim: DimTex2D, Format: driver.RGBA8un, Width: 1920, Height: 1080})
	hdr, _ := rg.Declare(Resource{Name: "hdr", Dim: DimTex2D, Format: driver.RGBA16f, Width: 1920, Height: 1080})
	back, _ := rg.Declare(Resource{Name: "backbuffer", Dim: DimTex2D, Format: driver.RGBA8un, Width: 1920, Height: 1080, Residency: Backbuffer})

	rgd := NewRenderGraph(rg, nil)
	must(t)(rgd.AddPass(Pass{
		Name: "gbuffer",
		Kind: Raster,
		Views: []View{
			{Name: "color", Resource: color, Access: WriteOnly, Rasterized: true, ColorSlot: -1},
		},
	}))
	must(t)(rgd.AddPass(Pass{
		Name: "lighting",
		Kind: Raster,
		Views: []View{
			{Name: "color", Resource: color, Access: ReadOnly},
			{Name: "hdr", Resource: hdr, Access: WriteOnly, Rasterized: true, ColorSlot: -1},
		},
	}))
	must(t)(rgd.AddPass(Pass{
		Name: "present",
		Kind: Present,
		Views: []View{
			{Name: "hdr", Resource: hdr, Access: ReadOnly},
			{Name: "backbuffer", Resource: back, Access: WriteOnly, Rasterized: true, ColorSlot: -1},
		},
	}))
	return rgd
}

func must(t *testing.T) func(PassID, error) {
	t.Helper()
	return func(_ PassID, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("AddPass: unexpected error: %v", err)
		}
	}
}

func TestBuildRAGStraightLine(t *testing.T) {
	rgd := buildStraightLine(t)
	rag, err := BuildRAG(rgd, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildRAG: unexpected error: %v", err)
	}
	order := rag.Order()
	// start, gbuffer, lighting, present, sink.
	if len(order) != 5 {
		t.Fatalf("Order: len:\nhave %d\nwant 5", len(order))
	}
	if order[0] != rag.start {
		t.Fatalf("Order: first vertex must be the synthetic start")
	}
	if order[len(order)-1] != rag.sink {
		t.Fatalf("Order: last vertex must be the synthetic sink")
	}
	// Check each pass vertex follows its producer.
	posOf := make(map[PassID]int)
	for pos, idx := range order {
		if rag.verts[idx].pass > 0 {
			posOf[rag.verts[idx].pass] = pos
		}
	}
	gbuf, _ := rgd.PassByName("gbuffer")
	light, _ := rgd.PassByName("lighting")
	pres, _ := rgd.PassByName("present")
	if !(posOf[gbuf] < posOf[light] && posOf[light] < posOf[pres]) {
		t.Fatalf("Order: expected gbuffer < lighting < present, got %v", posOf)
	}
}

func TestBuildRAGMissingPresentSynthesizesSink(t *testing.T) {
	rg := NewResourceGraph()
	tex, _ := rg.Declare(Resource{Name: "tex", Dim: DimTex2D, Width: 64, Height: 64})
	rgd := NewRenderGraph(rg, nil)
	must(t)(rgd.AddPass(Pass{
		Name:  "draw",
		Kind:  Raster,
		Views: []View{{Name: "tex", Resource: tex, Access: WriteOnly, Rasterized: true, ColorSlot: -1}},
	}))
	rag, err := BuildRAG(rgd, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildRAG: unexpected error: %v", err)
	}
	if len(rag.Warnings) == 0 {
		t.Fatal("Warnings: expected a warning about the missing present pass")
	}
}

func TestBranchCullingRemovesDeadLeaves(t *testing.T) {
	rg := NewResourceGraph()
	live, _ := rg.Declare(Resource{Name: "live", Residency: Backbuffer})
	dead, _ := rg.Declare(Resource{Name: "dead", Dim: DimTex2D, Width: 64, Height: 64})
	rgd := NewRenderGraph(rg, nil)
	must(t)(rgd.AddPass(Pass{
		Name:  "unused",
		Kind:  Compute,
		Views: []View{{Name: "dead", Resource: dead, Access: WriteOnly}},
	}))
	must(t)(rgd.AddPass(Pass{
		Name:  "present",
		Kind:  Present,
		Views: []View{{Name: "live", Resource: live, Access: WriteOnly, Rasterized: true, ColorSlot: -1}},
	}))
	rag, err := BuildRAG(rgd, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildRAG: unexpected error: %v", err)
	}
	unused, _ := rgd.PassByName("unused")
	for _, idx := range rag.order {
		if rag.verts[idx].pass == unused {
			t.Fatal("branch culling: the dead pass must not appear in the final order")
		}
	}
}

// buildDiamond declares a diamond: producer writes shared,
// left and right each read shared and write a private output,
// and join reads both outputs.
func buildDiamond(t *testing.T) (*RenderGraph, ResID, ResID) {
	t.Helper()
	rg := NewResourceGraph()
	shared, _ := rg.Declare(Resource{Name: "shared", Dim: DimTex2D, Width: 256, Height: 256})
	leftOut, _ := rg.Declare(Resource{Name: "leftOut", Dim: DimTex2D, Width: 256, Height: 256})
	rightOut, _ := rg.Declare(Resource{Name: "rightOut", Dim: DimTex2D, Width: 256, Height: 256})

	rgd := NewRenderGraph(rg, nil)
	must(t)(rgd.AddPass(Pass{
		Name:  "producer",
		Kind:  Compute,
		Views: []View{{Name: "shared", Resource: shared, Access: WriteOnly}},
	}))
	must(t)(rgd.AddPass(Pass{
		Name: "left",
		Kind: Compute,
		Views: []View{
			{Name: "shared", Resource: shared, Access: ReadOnly},
			{Name: "leftOut", Resource: leftOut, Access: WriteOnly},
		},
	}))
	must(t)(rgd.AddPass(Pass{
		Name: "right",
		Kind: Compute,
		Views: []View{
			{Name: "shared", Resource: shared, Access: ReadOnly},
			{Name: "rightOut", Resource: rightOut, Access: WriteOnly},
		},
	}))
	must(t)(rgd.AddPass(Pass{
		Name: "join",
		Kind: Compute,
		Views: []View{
			{Name: "leftOut", Resource: leftOut, Access: ReadOnly},
			{Name: "rightOut", Resource: rightOut, Access: ReadOnly},
		},
	}))
	return rgd, leftOut, rightOut
}

func TestReorderDiamondWeightZero(t *testing.T) {
	rgd, _, _ := buildDiamond(t)
	cfg := DefaultConfig()
	cfg.ParallelExecWeight = 0
	rag, err := BuildRAG(rgd, cfg)
	if err != nil {
		t.Fatalf("BuildRAG: unexpected error: %v", err)
	}
	left, _ := rgd.PassByName("left")
	right, _ := rgd.PassByName("right")

	var leftIdx, rightIdx int
	for idx := range rag.verts {
		if rag.verts[idx].pass == left {
			leftIdx = idx
		}
		if rag.verts[idx].pass == right {
			rightIdx = idx
		}
	}

	if err := Reorder(rag, cfg); err != nil {
		t.Fatalf("Reorder: unexpected error: %v", err)
	}

	reach := newReachCache(rag)
	if !reach.reachable(leftIdx, rightIdx) && !reach.reachable(rightIdx, leftIdx) {
		t.Fatal("Reorder: expected weight=0 to fully serialize the diamond's branches")
	}
}

func TestReorderWeightOneLeavesBranchesParallel(t *testing.T) {
	rgd, _, _ := buildDiamond(t)
	cfg := DefaultConfig()
	cfg.ParallelExecWeight = 1
	rag, err := BuildRAG(rgd, cfg)
	if err != nil {
		t.Fatalf("BuildRAG: unexpected error: %v", err)
	}
	left, _ := rgd.PassByName("left")
	right, _ := rgd.PassByName("right")
	var leftIdx, rightIdx int
	for idx := range rag.verts {
		if rag.verts[idx].pass == left {
			leftIdx = idx
		}
		if rag.verts[idx].pass == right {
			rightIdx = idx
		}
	}
	if err := Reorder(rag, cfg); err != nil {
		t.Fatalf("Reorder: unexpected error: %v", err)
	}
	reach := newReachCache(rag)
	if reach.reachable(leftIdx, rightIdx) || reach.reachable(rightIdx, leftIdx) {
		t.Fatal("Reorder: expected weight=1 to leave the diamond's branches parallel")
	}
}

func TestValidateMoveRejectsMismatch(t *testing.T) {
	rg := NewResourceGraph()
	a, _ := rg.Declare(Resource{Name: "a", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256})
	b, _ := rg.Declare(Resource{Name: "b", Dim: DimTex2D, Format: driver.RGBA8un, Width: 512, Height: 512})
	c, _ := rg.Declare(Resource{Name: "c", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256})
	if ValidateMove(rg, a, b) {
		t.Fatal("ValidateMove: expected false for mismatched dimensions")
	}
	if !ValidateMove(rg, a, c) {
		t.Fatal("ValidateMove: expected true for matching resources")
	}
}
