// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

// ValidateMove reports whether a Move pass renaming from into
// to is valid: the two resources must agree on format,
// dimension and extent, and neither may be a Backbuffer (a
// swapchain image's identity cannot be renamed away).
//
// When validation fails, the caller should declare the view
// with IsMove set to false instead: deriveAccess already
// treats a non-move write/read identically to a move one
// (both resolve to driver.ACopyWrite/driver.ACopyRead), so the
// pass degrades to an ordinary copy pass without any further
// change to the render graph.
func ValidateMove(rg *ResourceGraph, from, to ResID) bool {
	a, b := rg.At(from), rg.At(to)
	if a.Residency == Backbuffer || b.Residency == Backbuffer {
		return false
	}
	return a.Dim == b.Dim &&
		a.Format == b.Format &&
		a.Width == b.Width &&
		a.Height == b.Height &&
		a.Depth == b.Depth &&
		a.Mips == b.Mips &&
		a.Samples == b.Samples
}
