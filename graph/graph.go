// Copyright 2025 Darkforge Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for describing a network as an
// ordered sequence of layer records.
//
// The package defines the in-memory model a loader produces and the
// converter consumes:
//   - Record: one layer with its kind, geometry and parameter arrays
//   - Model: the ordered record sequence plus the discovered input shape
//   - Kind, Activation: closed enumerations over what the converter emits
//
// Example:
//
//	conv := &graph.Record{
//	    Name: "conv2d", Kind: graph.KindConvolution,
//	    Filters: 16, InChannels: 3, KernelSize: 3, Stride: 1, Padding: 1,
//	    Weights: weights,
//	}
//	model := &graph.Model{Layers: []*graph.Record{conv}}
//	if err := model.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package graph

import (
	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Type aliases for public API

// Kind identifies the role of a layer record in the network graph.
type Kind = graph.Kind

// Layer kinds understood by the converter.
const (
	KindConvolution Kind = graph.KindConvolution
	KindMaxPool     Kind = graph.KindMaxPool
	KindUpsample    Kind = graph.KindUpsample
	KindRoute       Kind = graph.KindRoute
	KindShortcut    Kind = graph.KindShortcut
	KindDetection   Kind = graph.KindDetection
	KindBatchNorm   Kind = graph.KindBatchNorm
	KindOther       Kind = graph.KindOther
)

// Activation identifies the activation attached to a convolution.
type Activation = graph.Activation

// Activation kinds.
const (
	ActivationLinear    Activation = graph.ActivationLinear
	ActivationLeakyReLU Activation = graph.ActivationLeakyReLU
	ActivationReLU      Activation = graph.ActivationReLU
	ActivationUnknown   Activation = graph.ActivationUnknown
)

// Record is the canonical in-memory description of one network node.
type Record = graph.Record

// InputShape is the spatial geometry of the network input.
type InputShape = graph.InputShape

// Model is a loader's output: the ordered layer sequence plus the input
// shape it discovered.
type Model = graph.Model

// ValidationError reports a record whose declared shape and parameter
// buffers disagree. It wraps one of the sentinel errors below.
type ValidationError = graph.ValidationError

// Validation failure classes, for errors.Is.
var (
	ErrShapeMismatch = graph.ErrShapeMismatch
	ErrMissingField  = graph.ErrMissingField
	ErrIndexOrder    = graph.ErrIndexOrder
)

// DefaultInputShape returns the historical converter default of 416×416×3.
func DefaultInputShape() InputShape {
	return graph.DefaultInputShape()
}

// ResolveInput combines the shape discovered by the loader with a
// caller-supplied override. Each override dimension that is set (> 0)
// wins; dimensions unset in both fall back to the default shape.
func ResolveInput(discovered, override InputShape) InputShape {
	return graph.ResolveInput(discovered, override)
}

// TransposeHWIO permutes a dense kernel buffer from [kh][kw][in][out]
// (HWIO) order into the [out][in][kh][kw] (OIHW) order Record.Weights
// expects. Loaders whose source framework stores kernels HWIO call this
// before filling a record.
func TransposeHWIO(src []float32, kh, kw, in, out int) ([]float32, error) {
	return graph.TransposeHWIO(src, kh, kw, in, out)
}
