// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import "github.com/gviegas/framegraph/driver"

// binding identifies a (pass, name) pair in a LayoutGraph.
type binding struct {
	pass string
	name string
}

// bindingInfo is the read-only layout information associated
// with a binding.
type bindingInfo struct {
	visibility driver.Stage
	slot       int
	hasSlot    bool
}

// LayoutGraph (LG) is a read-only mapping from a (pass, binding
// name) pair to the shader-stage visibility and descriptor slot
// declared for that binding.
//
// The zero value is an empty LayoutGraph; every lookup returns
// the default visibility.
type LayoutGraph struct {
	bindings map[binding]bindingInfo
}

// NewLayoutGraph creates an initialized, empty LayoutGraph.
func NewLayoutGraph() *LayoutGraph {
	return &LayoutGraph{bindings: make(map[binding]bindingInfo)}
}

// Bind declares the visibility and descriptor slot of a named
// binding within a given pass.
func (g *LayoutGraph) Bind(pass, name string, visibility driver.Stage, slot int) {
	g.bindings[binding{pass, name}] = bindingInfo{visibility, slot, true}
}

// defaultVisibility is the stage Visibility returns for a
// binding that has no entry in the LayoutGraph.
const defaultVisibility = driver.SFragment

// Visibility returns the shader-stage visibility declared for
// the given (pass, name) pair. If no such binding was declared,
// it returns defaultVisibility and ok is false.
func (g *LayoutGraph) Visibility(pass, name string) (vis driver.Stage, ok bool) {
	if g.bindings == nil {
		return defaultVisibility, false
	}
	if info, found := g.bindings[binding{pass, name}]; found {
		return info.visibility, true
	}
	return defaultVisibility, false
}

// Slot returns the descriptor slot declared for the given
// (pass, name) pair, if any.
func (g *LayoutGraph) Slot(pass, name string) (slot int, ok bool) {
	if g.bindings == nil {
		return 0, false
	}
	if info, found := g.bindings[binding{pass, name}]; found && info.hasSlot {
		return info.slot, true
	}
	return 0, false
}
