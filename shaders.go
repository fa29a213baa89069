package framegraph

import _ "embed"

// WGSL sources for the stock shader effects. Every effect shares the
// same interface: a params uniform at binding 0, input textures from
// binding 1, and a sampler after the textures. The vertex stage draws a
// single fullscreen triangle from the vertex index.

//go:embed shaders/blit.wgsl
var blitShaderSource string

//go:embed shaders/invert.wgsl
var invertShaderSource string

//go:embed shaders/grayscale.wgsl
var grayscaleShaderSource string

//go:embed shaders/brightness.wgsl
var brightnessShaderSource string
