package graph

import "fmt"

// Kind identifies the role of a layer record in the network graph.
type Kind int

// Layer kinds understood by the converter. Records of other kinds are
// carried through untouched and contribute nothing to either artifact.
const (
	KindConvolution Kind = iota
	KindMaxPool
	KindUpsample
	KindRoute
	KindShortcut
	KindDetection
	KindBatchNorm
	KindOther
)

// String returns the layer kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindConvolution:
		return "convolutional"
	case KindMaxPool:
		return "maxpool"
	case KindUpsample:
		return "upsample"
	case KindRoute:
		return "route"
	case KindShortcut:
		return "shortcut"
	case KindDetection:
		return "yolo"
	case KindBatchNorm:
		return "batch_normalization"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Activation identifies the activation attached to a convolution.
//
// The set is closed: anything a loader cannot classify maps to
// ActivationUnknown, which downstream emitters treat as linear.
type Activation int

// Activation kinds.
const (
	ActivationLinear Activation = iota
	ActivationLeakyReLU
	ActivationReLU
	ActivationUnknown
)

// String returns the activation name used in diagnostics.
func (a Activation) String() string {
	switch a {
	case ActivationLinear:
		return "linear"
	case ActivationLeakyReLU:
		return "leaky"
	case ActivationReLU:
		return "relu"
	default:
		return "unknown"
	}
}

// Record is the canonical in-memory description of one network node. It
// carries every field any downstream writer needs; fields outside a record's
// kind are simply left at their zero values.
//
// Records are produced once by a model loader, mutated exactly once by the
// fusion pass, and treated as read-only by both output stages.
type Record struct {
	Name string
	Kind Kind
	// Index is the record's position in the topologically ordered sequence.
	// The fusion pass removes normalization records but never renumbers the
	// survivors, so Refs values stay meaningful in the original numbering.
	Index int

	// Convolution attributes.
	Filters        int
	InChannels     int
	KernelSize     int // square kernels only
	Stride         int
	Padding        int
	Groups         int
	Activation     Activation
	BatchNormalize bool

	// Normalization parameters, each of length Filters when present.
	// On a convolution they appear after fusion; on a batch-normalization
	// record they are the values to be fused.
	Scales    []float32
	Shifts    []float32
	Means     []float32
	Variances []float32

	// Weights holds the flattened kernel tensor in
	// [filters][inChannels/groups][kh][kw] major-to-minor order. Loaders
	// with source-major layouts must permute first (see TransposeHWIO).
	Weights []float32
	// Biases has length Filters when present. nil means the source had no
	// bias term; the weights writer substitutes zeros.
	Biases []float32

	// Pooling attributes. For upsample records the factor lives in Stride.
	PoolSize   int
	PoolStride int

	// Refs lists referenced layer indices for route and shortcut records.
	// Each value is an absolute index or a negative offset counted backward
	// from this record. Empty means "use the section default".
	Refs []int
}

// WeightCount returns the expected number of kernel elements:
// filters × inChannels/groups × kernelSize².
func (r *Record) WeightCount() int {
	groups := r.Groups
	if groups <= 0 {
		groups = 1
	}
	return r.Filters * (r.InChannels / groups) * r.KernelSize * r.KernelSize
}

// Validate checks a convolution record's declared shape against its
// parameter buffers. Records of other kinds always validate.
func (r *Record) Validate() error {
	if r.Kind != KindConvolution {
		return nil
	}

	if r.Filters <= 0 {
		return &ValidationError{
			Err:     ErrMissingField,
			Layer:   r.Name,
			Field:   "filters",
			Details: fmt.Sprintf("must be > 0, got %d", r.Filters),
		}
	}

	if r.Biases != nil && len(r.Biases) != r.Filters {
		return &ValidationError{
			Err:     ErrShapeMismatch,
			Layer:   r.Name,
			Field:   "biases",
			Details: fmt.Sprintf("expected %d values, got %d", r.Filters, len(r.Biases)),
		}
	}

	if r.BatchNormalize {
		norm := []struct {
			field  string
			values []float32
		}{
			{"scales", r.Scales},
			{"shifts", r.Shifts},
			{"means", r.Means},
			{"variances", r.Variances},
		}
		for _, n := range norm {
			if n.values == nil {
				return &ValidationError{
					Err:     ErrMissingField,
					Layer:   r.Name,
					Field:   n.field,
					Details: "normalization is fused but the array is absent",
				}
			}
			if len(n.values) != r.Filters {
				return &ValidationError{
					Err:     ErrShapeMismatch,
					Layer:   r.Name,
					Field:   n.field,
					Details: fmt.Sprintf("expected %d values, got %d", r.Filters, len(n.values)),
				}
			}
		}
	}

	if want := r.WeightCount(); len(r.Weights) != want {
		return &ValidationError{
			Err:     ErrShapeMismatch,
			Layer:   r.Name,
			Field:   "weights",
			Details: fmt.Sprintf("expected %d values, got %d", want, len(r.Weights)),
		}
	}

	return nil
}

// InputShape is the spatial geometry of the network input.
type InputShape struct {
	Height   int
	Width    int
	Channels int
}

// DefaultInputShape returns the historical converter default of 416×416×3.
func DefaultInputShape() InputShape {
	return InputShape{Height: 416, Width: 416, Channels: 3}
}

// ResolveInput combines the shape discovered by the loader with a
// caller-supplied override. Each override dimension that is set (> 0) wins;
// dimensions unset in both fall back to the default shape.
func ResolveInput(discovered, override InputShape) InputShape {
	def := DefaultInputShape()
	pick := func(disc, over, fallback int) int {
		if over > 0 {
			return over
		}
		if disc > 0 {
			return disc
		}
		return fallback
	}
	return InputShape{
		Height:   pick(discovered.Height, override.Height, def.Height),
		Width:    pick(discovered.Width, override.Width, def.Width),
		Channels: pick(discovered.Channels, override.Channels, def.Channels),
	}
}

// Model is a loader's output: the ordered layer sequence plus the input
// shape it discovered.
type Model struct {
	Layers []*Record
	Input  InputShape
}

// Validate checks every record and the ordering invariant: indices must be
// strictly increasing in sequence order.
func (m *Model) Validate() error {
	prev := -1
	for _, rec := range m.Layers {
		if rec.Index <= prev {
			return &ValidationError{
				Err:     ErrIndexOrder,
				Layer:   rec.Name,
				Field:   "index",
				Details: fmt.Sprintf("index %d does not increase over %d", rec.Index, prev),
			}
		}
		prev = rec.Index

		if err := rec.Validate(); err != nil {
			return err
		}
	}
	return nil
}
