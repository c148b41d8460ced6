// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import "testing"

func TestDispatcherCompileStraightLine(t *testing.T) {
	rgd := buildStraightLine(t)
	d := NewDispatcher(DefaultConfig())
	plan, err := d.Compile(rgd)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %v", err)
	}
	if plan.RAG == nil || plan.Barriers == nil {
		t.Fatal("Compile: expected a fully populated Plan")
	}
	if len(plan.DevicePasses) != len(plan.RAG.verts) {
		t.Fatalf("DevicePasses: len:\nhave %d\nwant %d", len(plan.DevicePasses), len(plan.RAG.verts))
	}
}

func TestDispatcherCompileDiamond(t *testing.T) {
	rgd, _, _ := buildDiamond(t)
	cfg := DefaultConfig()
	cfg.ParallelExecWeight = 0
	d := NewDispatcher(cfg)
	plan, err := d.Compile(rgd)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %v", err)
	}
	if len(plan.RAG.Order()) != len(plan.RAG.verts) {
		t.Fatal("Compile: expected every vertex to appear in the final order")
	}
}
