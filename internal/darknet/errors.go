package darknet

import "errors"

// Codec errors.
var (
	ErrNotConvolution = errors.New("record is not a convolution")
	ErrTrailingData   = errors.New("trailing data after final block")
)
