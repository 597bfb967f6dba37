// Package fuse reconciles a loaded layer sequence for serialization by
// folding batch-normalization records into the convolutions they normalize.
package fuse

import (
	"fmt"
	"regexp"

	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Convolution name stems. Keras-style exporters emit conv2d_N paired with
// batch_normalization_N; graphs that went through other converters sometimes
// carry the long-form convolutional_N stem instead.
const (
	stemShort = "conv2d"
	stemLong  = "convolutional"
)

// trailingNum matches the numeric suffix exporters append to layer names.
var trailingNum = regexp.MustCompile(`_(\d+)$`)

// Tier tells how a normalization record was paired with its convolution.
type Tier int

// Pairing tiers, in resolution order.
const (
	TierUnmatched Tier = iota
	TierName
	TierPosition
)

// String returns the tier name used in diagnostics.
func (t Tier) String() string {
	switch t {
	case TierName:
		return "name"
	case TierPosition:
		return "position"
	default:
		return "unmatched"
	}
}

// Result is the output of one reconciliation pass.
type Result struct {
	// Layers is the input sequence with every normalization record removed.
	// Surviving records keep their original pointers, relative order, and
	// index numbers.
	Layers []*graph.Record

	// ByName and ByPosition count convolutions whose normalization partner
	// was found by name correlation and by positional adjacency.
	ByName     int
	ByPosition int

	// Dropped names the normalization records no convolution claimed.
	Dropped []string
}

// Fuse absorbs batch-normalization records into their convolutions and
// removes them from the sequence.
//
// Partners resolve in two tiers. First by name: batch_normalization_7
// pairs with conv2d_7 or convolutional_7, and a record with no numeric
// suffix pairs with the unsuffixed conv2d. Then, for convolutions still
// unpaired, by adjacency: a normalization record whose index is exactly
// one past the convolution's. A normalization record fuses at most once
// either way; leftovers are dropped, never fatal.
//
// Fusion copies the parameter arrays by value and removes the source
// record, so running Fuse over its own output changes nothing.
func Fuse(layers []*graph.Record) *Result {
	byName := make(map[string]*graph.Record)
	byIndex := make(map[int]*graph.Record)
	for _, rec := range layers {
		if rec.Kind != graph.KindBatchNorm {
			continue
		}
		byIndex[rec.Index] = rec
		for _, name := range candidateNames(rec.Name) {
			if _, taken := byName[name]; !taken {
				byName[name] = rec
			}
		}
	}

	res := &Result{Layers: make([]*graph.Record, 0, len(layers))}
	consumed := make(map[*graph.Record]bool)

	for _, rec := range layers {
		if rec.Kind == graph.KindBatchNorm {
			continue
		}
		if rec.Kind == graph.KindConvolution {
			if norm, tier := resolve(rec, byName, byIndex, consumed); norm != nil {
				absorb(rec, norm)
				consumed[norm] = true
				switch tier {
				case TierName:
					res.ByName++
				case TierPosition:
					res.ByPosition++
				}
			}
		}
		res.Layers = append(res.Layers, rec)
	}

	for _, rec := range layers {
		if rec.Kind == graph.KindBatchNorm && !consumed[rec] {
			res.Dropped = append(res.Dropped, rec.Name)
		}
	}
	return res
}

// candidateNames lists the convolution names a normalization record can
// pair with.
func candidateNames(name string) []string {
	m := trailingNum.FindStringSubmatch(name)
	if m == nil {
		return []string{stemShort}
	}
	return []string{
		fmt.Sprintf("%s_%s", stemShort, m[1]),
		fmt.Sprintf("%s_%s", stemLong, m[1]),
	}
}

// resolve finds the unconsumed normalization partner for a convolution,
// trying name correlation before positional adjacency.
func resolve(conv *graph.Record, byName map[string]*graph.Record, byIndex map[int]*graph.Record, consumed map[*graph.Record]bool) (*graph.Record, Tier) {
	if norm := byName[conv.Name]; norm != nil && !consumed[norm] {
		return norm, TierName
	}
	if norm := byIndex[conv.Index+1]; norm != nil && !consumed[norm] {
		return norm, TierPosition
	}
	return nil, TierUnmatched
}

// absorb folds a normalization record's parameters into a convolution. The
// arrays are cloned so the convolution owns its copies outright. When the
// convolution arrives with no bias term of its own (absent or all zero),
// the learned shift serves as the effective bias.
func absorb(conv, norm *graph.Record) {
	conv.BatchNormalize = true
	conv.Scales = cloneFloats(norm.Scales)
	conv.Shifts = cloneFloats(norm.Shifts)
	conv.Means = cloneFloats(norm.Means)
	conv.Variances = cloneFloats(norm.Variances)
	if len(conv.Biases) == 0 || allZero(conv.Biases) {
		conv.Biases = cloneFloats(norm.Shifts)
	}
}

func cloneFloats(values []float32) []float32 {
	if values == nil {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}

func allZero(values []float32) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}
