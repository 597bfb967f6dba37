package darknet

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Writer encodes a weights artifact onto a stream.
type Writer struct {
	w       io.Writer
	order   binary.ByteOrder
	written int64
}

// NewWriter creates a writer in the format's default little-endian order.
func NewWriter(w io.Writer) *Writer {
	return NewWriterWithOrder(w, binary.LittleEndian)
}

// NewWriterWithOrder creates a writer with an explicit byte order, for
// callers that need artifacts readable by a same-order native reader.
func NewWriterWithOrder(w io.Writer, order binary.ByteOrder) *Writer {
	return &Writer{w: w, order: order}
}

// BytesWritten returns the number of bytes encoded so far.
func (w *Writer) BytesWritten() int64 {
	return w.written
}

// WriteHeader encodes the fixed preamble. The seen counter narrows to
// 32 bits for versions before 0.2.
func (w *Writer) WriteHeader(h Header) error {
	if err := w.writeInt32(h.Major); err != nil {
		return fmt.Errorf("failed to write major: %w", err)
	}
	if err := w.writeInt32(h.Minor); err != nil {
		return fmt.Errorf("failed to write minor: %w", err)
	}
	if err := w.writeInt32(h.Revision); err != nil {
		return fmt.Errorf("failed to write revision: %w", err)
	}

	if h.WideSeen() {
		if err := w.writeInt64(h.Seen); err != nil {
			return fmt.Errorf("failed to write seen: %w", err)
		}
		return nil
	}
	//nolint:gosec // G115: legacy headers cap the counter at 32 bits by definition.
	if err := w.writeInt32(int32(h.Seen)); err != nil {
		return fmt.Errorf("failed to write seen: %w", err)
	}
	return nil
}

// WriteConvolution encodes one parameter block: biases, then the three
// normalization arrays when the record is fused, then the kernel weights.
// The record is validated up front so a shape mismatch writes no bytes.
func (w *Writer) WriteConvolution(rec *graph.Record) error {
	if rec.Kind != graph.KindConvolution {
		return fmt.Errorf("%w: %s is %s", ErrNotConvolution, rec.Name, rec.Kind)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	biases := rec.Biases
	if biases == nil {
		// Absent biases are not an error, zeros are substituted.
		biases = make([]float32, rec.Filters)
	}
	if err := w.writeFloats(biases); err != nil {
		return fmt.Errorf("failed to write %s biases: %w", rec.Name, err)
	}

	if rec.BatchNormalize {
		if err := w.writeFloats(rec.Scales); err != nil {
			return fmt.Errorf("failed to write %s scales: %w", rec.Name, err)
		}
		if err := w.writeFloats(rec.Means); err != nil {
			return fmt.Errorf("failed to write %s means: %w", rec.Name, err)
		}
		if err := w.writeFloats(rec.Variances); err != nil {
			return fmt.Errorf("failed to write %s variances: %w", rec.Name, err)
		}
	}

	if err := w.writeFloats(rec.Weights); err != nil {
		return fmt.Errorf("failed to write %s weights: %w", rec.Name, err)
	}
	return nil
}

func (w *Writer) writeInt32(v int32) error {
	if err := binary.Write(w.w, w.order, v); err != nil {
		return err
	}
	w.written += 4
	return nil
}

func (w *Writer) writeInt64(v int64) error {
	if err := binary.Write(w.w, w.order, v); err != nil {
		return err
	}
	w.written += 8
	return nil
}

func (w *Writer) writeFloats(values []float32) error {
	if err := binary.Write(w.w, w.order, values); err != nil {
		return err
	}
	w.written += 4 * int64(len(values))
	return nil
}

// WriteModel encodes the header plus one block per convolution record, in
// sequence order. Records of every other kind contribute no bytes. Returns
// the total byte count encoded.
func WriteModel(w io.Writer, h Header, layers []*graph.Record) (int64, error) {
	bw := NewWriter(w)
	if err := bw.WriteHeader(h); err != nil {
		return bw.BytesWritten(), err
	}
	for _, rec := range layers {
		if rec.Kind != graph.KindConvolution {
			continue
		}
		if err := bw.WriteConvolution(rec); err != nil {
			return bw.BytesWritten(), err
		}
	}
	return bw.BytesWritten(), nil
}

// WriteModelFile writes the weights artifact at path. The artifact is all
// or nothing: on any error the partial file is removed.
func WriteModelFile(path string, h Header, layers []*graph.Record) (int64, error) {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := WriteModel(f, h, layers)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return n, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return n, fmt.Errorf("failed to close file: %w", err)
	}
	return n, nil
}
