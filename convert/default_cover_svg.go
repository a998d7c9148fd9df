package convert

import _ "embed"

// defaultCoverSVG is the stencil rasterized into a placeholder cover when the
// article has no usable cover media of its own.
//
//go:embed cover.svg
var defaultCoverSVG []byte
