// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rgraph

import (
	"sort"

	"github.com/gviegas/framegraph/driver"
)

// flatAttachment is one attachment slot of an assembled device
// pass, prior to the stable depth-stencil-last sort.
type flatAttachment struct {
	resource     ResID
	usage        AccessStatus
	depthStencil bool
	// firstSubpass is the index, in the source subpass chain,
	// of the first subpass that declared this attachment.
	firstSubpass int
}

// DevicePass is a single physical render pass assembled from a
// chain of logical (sub)passes.
type DevicePass struct {
	Attachments []driver.Attachment
	// AttachmentResource[i] is the ResID bound to Attachments[i].
	AttachmentResource []ResID
	Subpasses          []driver.Subpass
	Width, Height      int
}

// AssembleDevicePass flattens the attachment chain of the RAG
// vertex at idx (a raster/compute pass and its sub-nodes) into
// one physical render pass.
//
// barriers supplies the subpass wait flags computed by
// BuildBarriers (self-dependencies and cross-subpass hazards);
// it may be nil, in which case every subpass's Wait is left
// false.
//
// It is a no-op (returns nil, nil) for a vertex that carries
// no subpass chain, whatever its pass kind.
func AssembleDevicePass(rag *RAG, idx int, barriers *BarrierPlan) (*DevicePass, error) {
	v := &rag.verts[idx]
	if len(v.subs) == 0 {
		return nil, nil
	}

	var flat []flatAttachment
	slotOf := make(map[ResID]int) // resource -> index into flat

	const colorBits = driver.AColorRead | driver.AColorWrite
	const dsBits = driver.ADSRead | driver.ADSWrite
	for si, sn := range v.subs {
		for _, st := range sn.views {
			if st.status.Access&(colorBits|dsBits) == 0 {
				continue
			}
			isDS := st.status.Access&dsBits != 0
			if i, ok := slotOf[st.resource]; ok {
				// Re-read-after-write within the chain: mark the
				// attachment general/inout by widening its access.
				flat[i].usage.Access |= st.status.Access
				continue
			}
			slotOf[st.resource] = len(flat)
			flat = append(flat, flatAttachment{
				resource:     st.resource,
				usage:        st.status,
				depthStencil: isDS,
				firstSubpass: si,
			})
		}
	}

	var dsCount int
	for _, a := range flat {
		if a.depthStencil {
			dsCount++
		}
	}
	if dsCount > 1 {
		panic("rgraph: more than one depth-stencil attachment in a single device pass")
	}

	// Stable-sort so the depth-stencil attachment (if any) is
	// last; ties preserve discovery order (invariant 3).
	sort.SliceStable(flat, func(i, j int) bool {
		return !flat[i].depthStencil && flat[j].depthStencil
	})

	oldToNew := make(map[ResID]int, len(flat))
	for newIdx, a := range flat {
		oldToNew[a.resource] = newIdx
	}

	dp := &DevicePass{
		Attachments:        make([]driver.Attachment, len(flat)),
		AttachmentResource: make([]ResID, len(flat)),
	}
	// First free color bit wins (invariant 2): since color
	// attachments are emitted in order below the single,
	// trailing depth-stencil slot, a simple running uint32
	// bitmask, one bit per color slot, tracks use.
	var usedColorSlots uint32

	for i, a := range flat {
		res := rag.rg.RG.At(a.resource)
		dp.AttachmentResource[i] = a.resource
		dp.Attachments[i] = driver.Attachment{
			Format:  res.Format,
			Samples: max(1, res.Samples),
			Load:    [2]driver.LoadOp{driver.LLoad, driver.LDontCare},
			Store:   [2]driver.StoreOp{driver.SStore, driver.SDontCare},
		}
		if !a.depthStencil {
			bit := uint32(1) << uint(i)
			if usedColorSlots&bit != 0 {
				panic("rgraph: color attachment slot overflow")
			}
			usedColorSlots |= bit
		}
	}

	dp.Subpasses = make([]driver.Subpass, len(v.subs))
	for si, sn := range v.subs {
		sub := driver.Subpass{DS: -1}
		seen := make(map[int]bool)
		for _, st := range sn.views {
			newIdx, ok := oldToNew[st.resource]
			if !ok {
				continue
			}
			if flat[newIdx].depthStencil {
				sub.DS = newIdx
				continue
			}
			if seen[newIdx] {
				continue
			}
			seen[newIdx] = true
			sub.Color = append(sub.Color, newIdx)
		}
		sort.Ints(sub.Color)
		if barriers != nil && si < len(barriers.nodes[idx].Subpass) {
			sub.Wait = barriers.nodes[idx].Subpass[si].Wait
		}
		dp.Subpasses[si] = sub
	}

	dp.Width, dp.Height = renderArea(rag, flat)
	return dp, nil
}

// renderArea computes the render area as the smallest
// attachment extent among the assembled attachments.
func renderArea(rag *RAG, flat []flatAttachment) (w, h int) {
	w, h = -1, -1
	for _, a := range flat {
		res := rag.rg.RG.At(a.resource)
		if w == -1 || res.Width < w {
			w = res.Width
		}
		if h == -1 || res.Height < h {
			h = res.Height
		}
	}
	if w == -1 {
		w, h = 0, 0
	}
	return
}
