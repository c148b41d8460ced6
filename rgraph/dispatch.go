// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import "github.com/gviegas/framegraph/driver"

// Plan is the fully compiled output of a Dispatcher run: a
// topologically ordered RAG, its synthesized barriers, and the
// device passes assembled for every raster/compute vertex that
// carries a subpass chain.
type Plan struct {
	RAG      *RAG
	Barriers *BarrierPlan
	// DevicePasses is indexed the same way as RAG vertices;
	// entries are nil for vertices that are not the head of a
	// subpass chain.
	DevicePasses []*DevicePass
}

// Dispatcher compiles a RenderGraph into a Plan and, given a
// driver.CmdBuffer, records the barriers and device-pass
// boundaries of that plan in topological order.
//
// Dispatcher holds no GPU resources of its own; it only reads
// RG/LG/RGD and writes into RG.states as a side effect of
// compiling.
type Dispatcher struct {
	Config DispatchConfig
}

// NewDispatcher creates a Dispatcher with the given
// configuration.
func NewDispatcher(cfg DispatchConfig) *Dispatcher {
	cfg = cfg.clamped()
	return &Dispatcher{Config: cfg}
}

// Compile builds the Resource Access Graph, optionally reorders
// it, synthesizes barriers, and assembles device passes for rg.
//
// A fatal internal invariant violation (duplicate depth-stencil
// slot, color-slot overflow) is reported as a panic by
// AssembleDevicePass; a barrier inside a subpass cannot occur,
// since a subpass only carries a Wait flag and
// self-dependencies. This is the same way node.Graph.Insert panics on
// a broken arena invariant; Compile itself only returns an
// error for recoverable conditions such as a cycle in the
// declared render graph.
func (d *Dispatcher) Compile(rg *RenderGraph) (*Plan, error) {
	rag, err := BuildRAG(rg, d.Config)
	if err != nil {
		return nil, err
	}
	if err := Reorder(rag, d.Config); err != nil {
		return nil, err
	}
	barriers, err := BuildBarriers(rag)
	if err != nil {
		return nil, err
	}
	passes := make([]*DevicePass, len(rag.verts))
	for idx := range rag.verts {
		dp, err := AssembleDevicePass(rag, idx, barriers)
		if err != nil {
			return nil, err
		}
		passes[idx] = dp
	}
	return &Plan{RAG: rag, Barriers: barriers, DevicePasses: passes}, nil
}

// Record plays p back into cb: front barriers, then either a
// full render pass (beginPass/per-subpass draw callback/
// nextSubpass/endPass) or a bare set of commands for
// non-raster passes, then rear barriers, following the
// topological order computed during Compile.
//
// draw is invoked once per non-synthetic, non-subpass-chained
// vertex (and once per subpass of a chained vertex) so that the
// caller can record the actual draw/dispatch/copy commands;
// it receives the originating PassID and is never invoked for
// the dispatcher's synthetic start/sink vertices.
//
// newPass receives the assembled DevicePass so it can derive
// both the attachment list and the subpass list expected by
// driver.GPU.NewRenderPass. Subpass-level synchronization
// (self-dependencies and cross-subpass hazards, computed by
// BuildBarriers into each DevicePass's driver.Subpass.Wait) is
// entirely expressed in that subpass list: it is declared once,
// at newPass's call to driver.GPU.NewRenderPass, and needs no
// further action here at each NextSubpass boundary.
func (d *Dispatcher) Record(cb driver.CmdBuffer, p *Plan, newPass func(dp *DevicePass) (driver.RenderPass, error), newFB func(rp driver.RenderPass, dp *DevicePass) (driver.Framebuf, error), draw func(pass int) error) error {
	rag := p.RAG
	for _, idx := range rag.order {
		node := p.Barriers.Node(idx)
		if len(node.BlockFront) > 0 {
			recordBarriers(cb, node.BlockFront)
		}

		dp := p.DevicePasses[idx]
		if dp != nil && newPass != nil {
			rp, err := newPass(dp)
			if err != nil {
				return err
			}
			fb, err := newFB(rp, dp)
			if err != nil {
				rp.Destroy()
				return err
			}
			cb.BeginPass(rp, fb, nil)
			subs := rag.verts[idx].subs
			for si := range dp.Subpasses {
				if si > 0 {
					cb.NextSubpass()
				}
				if draw != nil {
					if err := draw(int(subs[si].pass)); err != nil {
						cb.EndPass()
						return err
					}
				}
			}
			cb.EndPass()
		} else if draw != nil && rag.verts[idx].pass >= 0 {
			if err := draw(int(rag.verts[idx].pass)); err != nil {
				return err
			}
		}

		if len(node.BlockRear) > 0 {
			recordBarriers(cb, node.BlockRear)
		}
	}
	return nil
}

// recordBarriers converts Barrier values to driver.Barrier and
// records them in a single CmdBuffer.Barrier call.
func recordBarriers(cb driver.CmdBuffer, bs []Barrier) {
	out := make([]driver.Barrier, len(bs))
	for i, b := range bs {
		out[i] = *b.Gfx
	}
	cb.Barrier(out)
}
