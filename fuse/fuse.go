// Package fuse provides the reconciliation pass that folds
// batch-normalization records into the convolutions they normalize.
//
// Fusion happens before serialization because the target format stores
// normalization parameters inside each convolution's block rather than as
// standalone layers.
//
// Example:
//
//	res := fuse.Fuse(model.Layers)
//	fmt.Printf("fused %d by name, %d by position\n", res.ByName, res.ByPosition)
//	model.Layers = res.Layers
package fuse

import (
	"github.com/darkforge-ml/darkforge/internal/fuse"
	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Result is the output of one reconciliation pass.
type Result = fuse.Result

// Tier tells how a normalization record was paired with its convolution.
type Tier = fuse.Tier

// Pairing tiers, in resolution order.
const (
	TierUnmatched Tier = fuse.TierUnmatched
	TierName      Tier = fuse.TierName
	TierPosition  Tier = fuse.TierPosition
)

// Fuse absorbs batch-normalization records into their convolutions and
// removes them from the sequence. Partners resolve by name correlation
// first (batch_normalization_7 pairs with conv2d_7 or convolutional_7),
// then by positional adjacency. A normalization record no convolution
// claims is dropped, never fatal. Running Fuse over its own output
// changes nothing.
func Fuse(layers []*graph.Record) *Result {
	return fuse.Fuse(layers)
}
