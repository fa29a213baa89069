// Package present bridges framegraph output to gogpu windows.
//
// A Presenter holds the most recent CPU-side pixels of a rendered frame
// and manages the window-facing texture behind them. The data flow is:
//
//	Executor (render) -> ReadFrame (CPU pixels) -> window texture -> draw
//
// The executor renders on its own device; the window owns a separate
// device. Pixels cross that boundary on the CPU, so the two devices
// never share resources.
//
// # Usage
//
//	p := present.New()
//	defer p.Close()
//
//	res, _ := exec.Execute(ctx, graph)
//	_ = p.Capture(exec, res.Output)
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    p.Present(dc.AsTextureDrawer())
//	})
//
// # Integration Without Circular Imports
//
// The window side is reached through gpucontext interfaces only
// (gpucontext.TextureDrawer, gpucontext.TextureCreator), so this
// package does not depend on any particular windowing stack.
//
// Presenter is NOT safe for concurrent use.
package present
