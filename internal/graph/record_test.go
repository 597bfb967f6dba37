package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConv builds a valid convolution record with ramp-valued parameters.
func newConv(name string, index, filters, inChannels, kernel int) *Record {
	rec := &Record{
		Name:       name,
		Kind:       KindConvolution,
		Index:      index,
		Filters:    filters,
		InChannels: inChannels,
		KernelSize: kernel,
		Stride:     1,
		Padding:    kernel / 2,
		Groups:     1,
	}
	rec.Weights = make([]float32, rec.WeightCount())
	for i := range rec.Weights {
		rec.Weights[i] = float32(i) * 0.5
	}
	rec.Biases = make([]float32, filters)
	for i := range rec.Biases {
		rec.Biases[i] = float32(i + 1)
	}
	return rec
}

func TestWeightCount(t *testing.T) {
	tests := []struct {
		name    string
		filters int
		in      int
		kernel  int
		groups  int
		want    int
	}{
		{"basic", 32, 3, 3, 1, 32 * 3 * 9},
		{"pointwise", 64, 128, 1, 1, 64 * 128},
		{"grouped", 16, 8, 3, 2, 16 * 4 * 9},
		{"groups unset", 8, 4, 2, 0, 8 * 4 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{
				Kind:       KindConvolution,
				Filters:    tt.filters,
				InChannels: tt.in,
				KernelSize: tt.kernel,
				Groups:     tt.groups,
			}
			assert.Equal(t, tt.want, rec.WeightCount())
		})
	}
}

func TestValidateConvolution(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rec := newConv("conv2d_1", 0, 4, 3, 3)
		assert.NoError(t, rec.Validate())
	})

	t.Run("valid without biases", func(t *testing.T) {
		rec := newConv("conv2d_1", 0, 4, 3, 3)
		rec.Biases = nil
		assert.NoError(t, rec.Validate())
	})

	t.Run("weights count mismatch", func(t *testing.T) {
		rec := newConv("conv2d_1", 0, 4, 3, 3)
		rec.Weights = rec.Weights[:len(rec.Weights)-1]
		err := rec.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShapeMismatch))

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "weights", verr.Field)
		assert.Equal(t, "conv2d_1", verr.Layer)
	})

	t.Run("biases length mismatch", func(t *testing.T) {
		rec := newConv("conv2d_1", 0, 4, 3, 3)
		rec.Biases = make([]float32, 3)
		err := rec.Validate()
		assert.True(t, errors.Is(err, ErrShapeMismatch))
	})

	t.Run("zero filters", func(t *testing.T) {
		rec := &Record{Name: "conv2d_1", Kind: KindConvolution}
		err := rec.Validate()
		assert.True(t, errors.Is(err, ErrMissingField))
	})

	t.Run("normalization array absent", func(t *testing.T) {
		rec := newConv("conv2d_1", 0, 4, 3, 3)
		rec.BatchNormalize = true
		rec.Scales = make([]float32, 4)
		rec.Shifts = make([]float32, 4)
		rec.Means = make([]float32, 4)
		// Variances missing.
		err := rec.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingField))

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "variances", verr.Field)
	})

	t.Run("normalization array wrong length", func(t *testing.T) {
		rec := newConv("conv2d_1", 0, 4, 3, 3)
		rec.BatchNormalize = true
		rec.Scales = make([]float32, 4)
		rec.Shifts = make([]float32, 4)
		rec.Means = make([]float32, 2)
		rec.Variances = make([]float32, 4)
		err := rec.Validate()
		assert.True(t, errors.Is(err, ErrShapeMismatch))
	})

	t.Run("non-convolution kinds always validate", func(t *testing.T) {
		for _, kind := range []Kind{KindMaxPool, KindUpsample, KindRoute, KindShortcut, KindDetection, KindBatchNorm, KindOther} {
			rec := &Record{Name: "x", Kind: kind}
			assert.NoError(t, rec.Validate(), "kind %s", kind)
		}
	})
}

func TestModelValidate(t *testing.T) {
	t.Run("strictly increasing indices", func(t *testing.T) {
		m := &Model{Layers: []*Record{
			newConv("conv2d", 0, 2, 3, 1),
			{Name: "pool", Kind: KindMaxPool, Index: 1, PoolSize: 2, PoolStride: 2},
			newConv("conv2d_1", 2, 2, 2, 1),
		}}
		assert.NoError(t, m.Validate())
	})

	t.Run("repeated index", func(t *testing.T) {
		m := &Model{Layers: []*Record{
			newConv("conv2d", 0, 2, 3, 1),
			{Name: "pool", Kind: KindMaxPool, Index: 0},
		}}
		err := m.Validate()
		assert.True(t, errors.Is(err, ErrIndexOrder))
	})

	t.Run("record error surfaces", func(t *testing.T) {
		bad := newConv("conv2d", 0, 2, 3, 1)
		bad.Weights = nil
		m := &Model{Layers: []*Record{bad}}
		assert.True(t, errors.Is(m.Validate(), ErrShapeMismatch))
	})
}

func TestResolveInput(t *testing.T) {
	tests := []struct {
		name       string
		discovered InputShape
		override   InputShape
		want       InputShape
	}{
		{
			"discovered wins when no override",
			InputShape{Height: 608, Width: 608, Channels: 3},
			InputShape{},
			InputShape{Height: 608, Width: 608, Channels: 3},
		},
		{
			"override wins per dimension",
			InputShape{Height: 608, Width: 608, Channels: 3},
			InputShape{Width: 320},
			InputShape{Height: 608, Width: 320, Channels: 3},
		},
		{
			"defaults fill unknown dimensions",
			InputShape{},
			InputShape{},
			InputShape{Height: 416, Width: 416, Channels: 3},
		},
		{
			"partial discovery",
			InputShape{Channels: 1},
			InputShape{},
			InputShape{Height: 416, Width: 416, Channels: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveInput(tt.discovered, tt.override))
		})
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindConvolution, "convolutional"},
		{KindMaxPool, "maxpool"},
		{KindUpsample, "upsample"},
		{KindRoute, "route"},
		{KindShortcut, "shortcut"},
		{KindDetection, "yolo"},
		{KindBatchNorm, "batch_normalization"},
		{KindOther, "other"},
		{Kind(42), "unknown(42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestActivationString(t *testing.T) {
	assert.Equal(t, "linear", ActivationLinear.String())
	assert.Equal(t, "leaky", ActivationLeakyReLU.String())
	assert.Equal(t, "relu", ActivationReLU.String())
	assert.Equal(t, "unknown", ActivationUnknown.String())
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		Err:     ErrShapeMismatch,
		Layer:   "conv2d_3",
		Field:   "weights",
		Details: "expected 27 values, got 9",
	}
	assert.Equal(t, `shape mismatch: layer "conv2d_3" field weights: expected 27 values, got 9`, err.Error())
	assert.Equal(t, fmt.Sprintf("%v", ErrShapeMismatch), errors.Unwrap(err).Error())
}
