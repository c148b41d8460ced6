// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

// DispatchConfig configures a Dispatcher.
type DispatchConfig struct {
	// EnablePassReorder allows the dispatcher to reorder
	// independent branches of the render graph to trade
	// parallelism for memory reuse.
	//
	// Default is true.
	EnablePassReorder bool

	// EnableMemoryAliasing allows transient resources to
	// share backing storage across non-overlapping
	// lifetimes.
	//
	// This is currently a no-op: the dispatcher accepts
	// the flag but performs no aliasing.
	//
	// Default is false.
	EnableMemoryAliasing bool

	// ParallelExecWeight controls the tradeoff applied by
	// the pass reorder engine when reducing close circuits.
	// A value of 0 favors memory reuse (serialize as much
	// as possible); a value of 1 favors parallelism (leave
	// circuits untouched).
	//
	// Clamped to [0, 1]. Default is 0.5.
	ParallelExecWeight float32

	// BranchCulling removes RAG vertices that have no
	// out-edges and no side effects.
	//
	// Default is true.
	BranchCulling bool
}

// DefaultConfig returns the default DispatchConfig.
func DefaultConfig() DispatchConfig {
	return DispatchConfig{
		EnablePassReorder:    true,
		EnableMemoryAliasing: false,
		ParallelExecWeight:   0.5,
		BranchCulling:        true,
	}
}

// clamped returns c with ParallelExecWeight clamped to [0, 1].
func (c DispatchConfig) clamped() DispatchConfig {
	switch {
	case c.ParallelExecWeight < 0:
		c.ParallelExecWeight = 0
	case c.ParallelExecWeight > 1:
		c.ParallelExecWeight = 1
	}
	return c
}
