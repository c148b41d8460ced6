// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"testing"

	"github.com/gviegas/framegraph/driver"
)

func TestMoveDegradesToCopyWhenInvalid(t *testing.T) {
	rg := NewResourceGraph()
	from, _ := rg.Declare(Resource{Name: "from", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256})
	to, _ := rg.Declare(Resource{Name: "to", Dim: DimTex2D, Format: driver.RGBA16f, Width: 256, Height: 256})

	valid := ValidateMove(rg, from, to)
	if valid {
		t.Fatal("ValidateMove: expected false for a format mismatch")
	}

	v := &View{Name: "to", Resource: to, Access: WriteOnly, MoveFrom: from, IsMove: valid}
	access := deriveAccess(Move, v, rg.At(to).Usage)
	if access != driver.ACopyWrite {
		t.Fatalf("deriveAccess: degraded move:\nhave %v\nwant %v", access, driver.ACopyWrite)
	}
}

func TestMoveKeptWhenValid(t *testing.T) {
	rg := NewResourceGraph()
	from, _ := rg.Declare(Resource{Name: "from", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256})
	to, _ := rg.Declare(Resource{Name: "to", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256})

	valid := ValidateMove(rg, from, to)
	if !valid {
		t.Fatal("ValidateMove: expected true for matching resources")
	}

	v := &View{Name: "to", Resource: to, Access: ReadOnly, MoveFrom: from, IsMove: valid}
	access := deriveAccess(Move, v, rg.At(to).Usage)
	if access != driver.ACopyRead {
		t.Fatalf("deriveAccess: valid move:\nhave %v\nwant %v", access, driver.ACopyRead)
	}
}

func TestValidateMoveRejectsBackbuffer(t *testing.T) {
	rg := NewResourceGraph()
	back, _ := rg.Declare(Resource{Name: "back", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256, Residency: Backbuffer})
	other, _ := rg.Declare(Resource{Name: "other", Dim: DimTex2D, Format: driver.RGBA8un, Width: 256, Height: 256})
	if ValidateMove(rg, back, other) {
		t.Fatal("ValidateMove: expected false when the source is a backbuffer")
	}
	if ValidateMove(rg, other, back) {
		t.Fatal("ValidateMove: expected false when the destination is a backbuffer")
	}
}
