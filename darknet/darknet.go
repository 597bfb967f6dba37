// Copyright 2025 Darkforge Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package darknet provides the public API for the Darknet weights format
// and its companion .cfg network description.
//
// The conversion output is a pair of artifacts:
//   - a binary weights file: version header plus one float32 parameter
//     block per convolution, in network order
//   - a text configuration: a [net] section plus one section per layer
//
// The binary format carries no per-layer shape metadata, so reading a
// weights file back requires the schemas recovered from its paired
// configuration.
//
// Example:
//
//	n, err := darknet.WriteModelFile("model.weights", darknet.DefaultHeader(), layers)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := darknet.EmitConfigFile("model.cfg", layers, darknet.DefaultEmitOptions()); err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg, err := darknet.ParseConfigFile("model.cfg")
//	hdr, params, err := darknet.ReadModelFile("model.weights", cfg.ConvSchemas())
package darknet

import (
	"encoding/binary"
	"io"

	internaldarknet "github.com/darkforge-ml/darkforge/internal/darknet"
	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Header is the fixed preamble of a weights artifact. The seen counter is
// encoded as 64 bits when Major*10+Minor >= 2, as 32 bits before that.
type Header = internaldarknet.Header

// DefaultHeader returns the version header modern artifacts carry, 0.2.0.
func DefaultHeader() Header {
	return internaldarknet.DefaultHeader()
}

// ConvSchema describes the shape of one convolution block for decoding.
type ConvSchema = internaldarknet.ConvSchema

// SchemaOf derives the block schema for a convolution record.
func SchemaOf(rec *graph.Record) ConvSchema {
	return internaldarknet.SchemaOf(rec)
}

// LayerParams holds the arrays decoded from one convolution block.
type LayerParams = internaldarknet.LayerParams

// Writer encodes a weights artifact onto a stream.
type Writer = internaldarknet.Writer

// NewWriter creates a writer in the format's default little-endian order.
func NewWriter(w io.Writer) *Writer {
	return internaldarknet.NewWriter(w)
}

// NewWriterWithOrder creates a writer with an explicit byte order.
func NewWriterWithOrder(w io.Writer, order binary.ByteOrder) *Writer {
	return internaldarknet.NewWriterWithOrder(w, order)
}

// Reader decodes a weights artifact from a stream.
type Reader = internaldarknet.Reader

// NewReader creates a reader in the format's default little-endian order.
func NewReader(r io.Reader) *Reader {
	return internaldarknet.NewReader(r)
}

// NewReaderWithOrder creates a reader with an explicit byte order.
func NewReaderWithOrder(r io.Reader, order binary.ByteOrder) *Reader {
	return internaldarknet.NewReaderWithOrder(r, order)
}

// WriteModel encodes the header plus one block per convolution record, in
// sequence order, and returns the total byte count encoded. Records of
// every other kind contribute no bytes.
func WriteModel(w io.Writer, h Header, layers []*graph.Record) (int64, error) {
	return internaldarknet.WriteModel(w, h, layers)
}

// WriteModelFile writes the weights artifact at path. The artifact is all
// or nothing: on any error the partial file is removed.
func WriteModelFile(path string, h Header, layers []*graph.Record) (int64, error) {
	return internaldarknet.WriteModelFile(path, h, layers)
}

// ReadModelFile decodes the weights artifact at path and verifies it
// holds exactly the blocks the schemas describe.
func ReadModelFile(path string, schemas []ConvSchema) (Header, []*LayerParams, error) {
	return internaldarknet.ReadModelFile(path, schemas)
}

// NetParams fills the leading [net] section of a configuration.
type NetParams = internaldarknet.NetParams

// DefaultNetParams returns the section defaults for a 416×416 RGB input.
func DefaultNetParams() NetParams {
	return internaldarknet.DefaultNetParams()
}

// DetectionParams fills [yolo] sections.
type DetectionParams = internaldarknet.DetectionParams

// DefaultDetectionParams returns the COCO-trained YOLOv3 constants.
func DefaultDetectionParams() DetectionParams {
	return internaldarknet.DefaultDetectionParams()
}

// EmitOptions configures the emitted network description.
type EmitOptions = internaldarknet.EmitOptions

// DefaultEmitOptions returns EmitOptions with every section default.
func DefaultEmitOptions() EmitOptions {
	return internaldarknet.DefaultEmitOptions()
}

// EmitConfig writes the [net] section followed by one section per record,
// in sequence order, with the fixed per-kind key order the target
// runtime's parser expects.
func EmitConfig(w io.Writer, layers []*graph.Record, opts EmitOptions) error {
	return internaldarknet.EmitConfig(w, layers, opts)
}

// EmitConfigFile writes the network description at path. On any error the
// partial file is removed.
func EmitConfigFile(path string, layers []*graph.Record, opts EmitOptions) error {
	return internaldarknet.EmitConfigFile(path, layers, opts)
}

// Config is a parsed network description.
type Config = internaldarknet.Config

// LayerConfig is one parsed layer section.
type LayerConfig = internaldarknet.LayerConfig

// ParseConfig reads a network description: '#' starts a comment,
// '[section]' opens a section, key=value lines accumulate into it.
// Unknown keys are preserved; unknown section kinds are carried as Other.
func ParseConfig(r io.Reader) (*Config, error) {
	return internaldarknet.ParseConfig(r)
}

// ParseConfigFile parses the network description at path.
func ParseConfigFile(path string) (*Config, error) {
	return internaldarknet.ParseConfigFile(path)
}

// Codec errors.
var (
	ErrNotConvolution = internaldarknet.ErrNotConvolution
	ErrTrailingData   = internaldarknet.ErrTrailingData
)
