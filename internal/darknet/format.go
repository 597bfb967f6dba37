package darknet

import "github.com/darkforge-ml/darkforge/internal/graph"

// Header is the fixed preamble of a weights artifact.
type Header struct {
	Major    int32
	Minor    int32
	Revision int32

	// Seen counts the training images the network has consumed. The field
	// width in the artifact depends on the version triple, see WideSeen.
	Seen int64
}

// DefaultHeader returns the version header modern artifacts carry, 0.2.0.
func DefaultHeader() Header {
	return Header{Major: 0, Minor: 2, Revision: 0}
}

// WideSeen reports whether the seen counter is encoded as 64 bits. The
// format widened the field at version 0.2 and readers must branch on the
// same test.
func (h Header) WideSeen() bool {
	return h.Major*10+h.Minor >= 2
}

// Size returns the encoded header length in bytes.
func (h Header) Size() int64 {
	if h.WideSeen() {
		return 20
	}
	return 16
}

// ConvSchema describes the shape of one convolution block. The binary
// format itself carries no shape metadata, so decoding needs one schema
// per block, in block order.
type ConvSchema struct {
	Name           string
	Filters        int
	InChannels     int
	KernelSize     int
	Groups         int
	BatchNormalize bool
}

// SchemaOf derives the block schema for a convolution record.
func SchemaOf(rec *graph.Record) ConvSchema {
	return ConvSchema{
		Name:           rec.Name,
		Filters:        rec.Filters,
		InChannels:     rec.InChannels,
		KernelSize:     rec.KernelSize,
		Groups:         rec.Groups,
		BatchNormalize: rec.BatchNormalize,
	}
}

// WeightCount returns the kernel element count of the block:
// filters × inChannels/groups × kernelSize².
func (s ConvSchema) WeightCount() int {
	groups := s.Groups
	if groups <= 0 {
		groups = 1
	}
	return s.Filters * (s.InChannels / groups) * s.KernelSize * s.KernelSize
}

// BlockSize returns the encoded block length in bytes.
func (s ConvSchema) BlockSize() int64 {
	n := s.Filters + s.WeightCount()
	if s.BatchNormalize {
		n += 3 * s.Filters
	}
	return 4 * int64(n)
}
