// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"iter"

	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/engine/internal/ctxt"
	"github.com/gviegas/framegraph/rgraph"
)

const rendPrefix = "renderer: "

func newRendErr(reason string) error { return errors.New(rendPrefix + reason) }

// Renderer is a real-time renderer that dispatches compiled
// frame graphs against a render target.
// Call NewRenderer to create a valid Renderer.
type Renderer struct {
	cb    [MaxFrame]driver.CmdBuffer
	done  [MaxFrame]chan error
	avail chan int

	lights [MaxLight]Light
	nlight int

	// TODO: Shadow maps.

	drawables drawableMap

	rt *Texture
	ds *Texture

	// TODO: Post-processing data.

	rg        *rgraph.ResourceGraph
	rgd       *rgraph.RenderGraph
	colorRes  rgraph.ResID
	dsRes     rgraph.ResID
	scenePass rgraph.PassID
	dispatch  *rgraph.Dispatcher
	plan      *rgraph.Plan
	rp        driver.RenderPass
	fb        driver.Framebuf
}

// NewRenderer creates a new renderer that targets an
// offscreen color texture of the given dimensions.
func NewRenderer(width, height int) (*Renderer, error) {
	var r Renderer
	if err := r.init(width, height); err != nil {
		return nil, err
	}
	return &r, nil
}

// init initializes r.
// It assumes that r has not been initialized yet
// (call r.Free first if that is not the case).
func (r *Renderer) init(width, height int) (err error) {
	defer func() {
		if err != nil {
			r.Free()
		}
	}()
	r.avail = make(chan int, MaxFrame)
	for i := range r.cb {
		r.cb[i], err = ctxt.GPU().NewCmdBuffer()
		if err != nil {
			return
		}
		r.done[i] = make(chan error, 1)
		r.avail <- i
	}
	for i := range r.lights {
		r.lights[i].layout.SetUnused(true)
	}
	// TODO: Initialize r.drawables.
	// TODO: Customizable sample count.
	// TODO: Choose a better DS format if available.
	r.rt, err = NewTarget(&TexParam{
		PixelFmt: driver.RGBA16f,
		Dim3D: driver.Dim3D{
			Width:  width,
			Height: height,
		},
		Layers:  1,
		Levels:  1,
		Samples: 4,
	})
	if err != nil {
		return
	}
	r.ds, err = NewTarget(&TexParam{
		PixelFmt: driver.D16un,
		Dim3D: driver.Dim3D{
			Width:  width,
			Height: height,
		},
		Layers:  1,
		Levels:  1,
		Samples: 4,
	})
	if err != nil {
		return
	}
	err = r.buildGraph(width, height)
	return
}

// buildGraph declares the single-pass frame graph that renders
// into r.rt/r.ds and compiles it into a Plan. Since this
// renderer's graph topology never changes across frames (one
// raster pass, two attachments), compiling once in init and
// reusing the Plan every frame avoids redoing RAG/barrier work
// that would just repeat identically.
func (r *Renderer) buildGraph(width, height int) (err error) {
	r.rg = rgraph.NewResourceGraph()
	r.colorRes, err = r.rg.Declare(rgraph.Resource{
		Name: "color", Dim: rgraph.DimTex2D, Format: r.rt.PixelFmt(),
		Width: width, Height: height, Samples: r.rt.Samples(),
	})
	if err != nil {
		return
	}
	r.dsRes, err = r.rg.Declare(rgraph.Resource{
		Name: "depth", Dim: rgraph.DimTex2D, Format: r.ds.PixelFmt(),
		Width: width, Height: height, Samples: r.ds.Samples(),
	})
	if err != nil {
		return
	}
	r.rgd = rgraph.NewRenderGraph(r.rg, nil)
	r.scenePass, err = r.rgd.AddPass(rgraph.Pass{
		Name: "scene",
		Kind: rgraph.Raster,
		Views: []rgraph.View{
			{Name: "color", Resource: r.colorRes, Access: rgraph.WriteOnly, Rasterized: true, ColorSlot: -1},
			{Name: "depth", Resource: r.dsRes, Access: rgraph.ReadWrite, Rasterized: true, DepthStencil: true},
		},
	})
	if err != nil {
		return
	}
	r.dispatch = rgraph.NewDispatcher(rgraph.DefaultConfig())
	r.plan, err = r.dispatch.Compile(r.rgd)
	return
}

// Draw records one frame: it acquires a command buffer,
// replays the compiled Plan's barriers and render-pass
// boundaries, invoking draw once per pass to record the actual
// GPU commands, then commits the buffer for execution.
//
// The render pass and framebuffer are created once, on the
// first call, and reused afterward: the Plan's device passes
// never change shape across frames for this renderer's static
// single-pass graph.
func (r *Renderer) Draw(draw func(pass rgraph.PassID) error) error {
	slot, cb, err := r.BeginFrame()
	if err != nil {
		return err
	}
	newPass := func(dp *rgraph.DevicePass) (rp driver.RenderPass, err error) {
		if r.rp != nil {
			return r.rp, nil
		}
		r.rp, err = ctxt.GPU().NewRenderPass(dp.Attachments, dp.Subpasses)
		return r.rp, err
	}
	newFB := func(rp driver.RenderPass, dp *rgraph.DevicePass) (fb driver.Framebuf, err error) {
		if r.fb != nil {
			return r.fb, nil
		}
		views := make([]driver.ImageView, len(dp.AttachmentResource))
		for i, res := range dp.AttachmentResource {
			switch res {
			case r.colorRes:
				views[i] = r.rt.View(0)
			case r.dsRes:
				views[i] = r.ds.View(0)
			}
		}
		r.fb, err = rp.NewFB(views, dp.Width, dp.Height, 1)
		return r.fb, err
	}
	err = r.dispatch.Record(cb, r.plan, newPass, newFB, func(pass int) error {
		if pass < 0 {
			return nil
		}
		return draw(rgraph.PassID(pass))
	})
	if err != nil {
		return err
	}
	return r.EndFrame(slot)
}

// Target returns the Texture into which r renders.
func (r *Renderer) Target() *Texture { return r.rt }

// DepthStencil returns the Texture that r uses as
// depth/stencil attachment.
func (r *Renderer) DepthStencil() *Texture { return r.ds }

// BeginFrame acquires a command buffer for recording.
// It blocks until a previously committed buffer using
// the same slot completes execution.
// EndFrame must be called with the returned slot once
// recording is done.
func (r *Renderer) BeginFrame() (slot int, cb driver.CmdBuffer, err error) {
	slot = <-r.avail
	select {
	case err = <-r.done[slot]:
	default:
	}
	if err != nil {
		r.avail <- slot
		return
	}
	if err = r.cb[slot].Begin(); err != nil {
		r.avail <- slot
		return
	}
	cb = r.cb[slot]
	return
}

// EndFrame ends recording of the command buffer acquired
// by BeginFrame and commits it for execution.
func (r *Renderer) EndFrame(slot int) error {
	if err := r.cb[slot].End(); err != nil {
		r.avail <- slot
		return err
	}
	ctxt.GPU().Commit([]driver.CmdBuffer{r.cb[slot]}, r.done[slot])
	r.avail <- slot
	return nil
}

// SetLight updates the light at the given index
// to contain a copy of *light.
// If light is nil, the slot is set as unused.
func (r *Renderer) SetLight(index int, light *Light) {
	unused := r.lights[index].layout.Unused()
	if light != nil {
		r.lights[index] = *light
		r.lights[index].layout.SetUnused(false)
		if unused {
			r.nlight++
		}
	} else {
		r.lights[index].layout.SetUnused(true)
		if !unused {
			r.nlight--
		}
	}
}

// Light returns a pointer to the light that was
// last set at the given index.
// If the slot is unused, it returns nil instead.
// It is not allowed to assign a new value to the
// return pointer; use SetLight instead.
func (r *Renderer) Light(index int) *Light {
	unused := r.lights[index].layout.Unused()
	if !unused {
		return &r.lights[index]
	}
	return nil
}

// Lights returns an iterator over the light slots
// that are currently in use, in the usual order.
func (r *Renderer) Lights() iter.Seq2[int, *Light] {
	return func(yield func(int, *Light) bool) {
		n := r.nlight
		for i := 0; n > 0; i++ {
			if r.lights[i].layout.Unused() {
				continue
			}
			n--
			if !yield(i, &r.lights[i]) {
				return
			}
		}
	}
}

// Free invalidates r and destroys/releases the
// driver resources it holds.
func (r *Renderer) Free() {
	if r == nil {
		return
	}
	if r.avail != nil {
		for range cap(r.avail) {
			select {
			case <-r.avail:
			default:
			}
		}
	}
	for _, cb := range r.cb {
		if cb != nil {
			cb.Destroy()
		}
	}
	// TODO: Deinitialize r.drawables.
	if r.fb != nil {
		r.fb.Destroy()
	}
	if r.rp != nil {
		r.rp.Destroy()
	}
	r.rt.Free()
	r.ds.Free()
	*r = Renderer{}
}
