// Package framegraph executes node graphs on the GPU.
//
// A graph is a set of typed nodes (image sources, video sources, shader
// effects) wired by connections from output ports to input ports. An
// Executor walks the graph in dependency order, dispatches a handler
// per node, and caches each node's output texture keyed by a
// fingerprint of everything that influences it: parameters, upstream
// frame versions, and the logical time for time-varying nodes. Editing
// one parameter re-renders only the affected node and its downstream
// consumers; everything else is served from cache.
//
// Basic usage:
//
//	g := framegraph.NewGraph()
//	src := g.AddNode("image-source")
//	g.SetParam(src, "source", framegraph.FileParam("photo.png"))
//	inv := g.AddNode("invert")
//	_ = g.Connect(src, 0, inv, 0)
//
//	exec, err := framegraph.New(device, queue, framegraph.StockLibrary(), nil)
//	if err != nil {
//		// handle error
//	}
//	defer exec.Close()
//
//	res, err := exec.Execute(context.Background(), g)
//	// res.Output is the rendered frame of the graph's output node.
//
// Shader effects beyond the stock library are added by registering a
// Definition carrying WGSL source; pipelines are compiled once per
// (shader, format, blend) key and cached, including terminal caching of
// compile failures.
//
// The package produces no log output by default; call SetLogger to
// enable diagnostics.
package framegraph
