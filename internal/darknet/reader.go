package darknet

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// LayerParams holds the arrays decoded from one convolution block. The
// normalization arrays are nil when the schema has no batch normalization.
type LayerParams struct {
	Name      string
	Biases    []float32
	Scales    []float32
	Means     []float32
	Variances []float32
	Weights   []float32
}

// Reader decodes a weights artifact from a stream. The format carries no
// shape metadata, so every block read takes an externally supplied schema.
type Reader struct {
	r     io.Reader
	order binary.ByteOrder
	read  int64
}

// NewReader creates a reader in the format's default little-endian order.
func NewReader(r io.Reader) *Reader {
	return NewReaderWithOrder(r, binary.LittleEndian)
}

// NewReaderWithOrder creates a reader with an explicit byte order.
func NewReaderWithOrder(r io.Reader, order binary.ByteOrder) *Reader {
	return &Reader{r: r, order: order}
}

// BytesRead returns the number of bytes decoded so far.
func (r *Reader) BytesRead() int64 {
	return r.read
}

// ReadHeader decodes the fixed preamble, replaying the writer's version
// test for the seen counter width.
func (r *Reader) ReadHeader() (Header, error) {
	var h Header
	if err := binary.Read(r.r, r.order, &h.Major); err != nil {
		return h, fmt.Errorf("read major: %w", err)
	}
	if err := binary.Read(r.r, r.order, &h.Minor); err != nil {
		return h, fmt.Errorf("read minor: %w", err)
	}
	if err := binary.Read(r.r, r.order, &h.Revision); err != nil {
		return h, fmt.Errorf("read revision: %w", err)
	}
	r.read += 12

	if h.WideSeen() {
		if err := binary.Read(r.r, r.order, &h.Seen); err != nil {
			return h, fmt.Errorf("read seen: %w", err)
		}
		r.read += 8
		return h, nil
	}
	var narrow int32
	if err := binary.Read(r.r, r.order, &narrow); err != nil {
		return h, fmt.Errorf("read seen: %w", err)
	}
	h.Seen = int64(narrow)
	r.read += 4
	return h, nil
}

// ReadConvolution decodes one parameter block shaped by the schema.
func (r *Reader) ReadConvolution(s ConvSchema) (*LayerParams, error) {
	p := &LayerParams{Name: s.Name}
	var err error

	if p.Biases, err = r.readFloats(s.Filters); err != nil {
		return nil, fmt.Errorf("read %s biases: %w", s.Name, err)
	}
	if s.BatchNormalize {
		if p.Scales, err = r.readFloats(s.Filters); err != nil {
			return nil, fmt.Errorf("read %s scales: %w", s.Name, err)
		}
		if p.Means, err = r.readFloats(s.Filters); err != nil {
			return nil, fmt.Errorf("read %s means: %w", s.Name, err)
		}
		if p.Variances, err = r.readFloats(s.Filters); err != nil {
			return nil, fmt.Errorf("read %s variances: %w", s.Name, err)
		}
	}
	if p.Weights, err = r.readFloats(s.WeightCount()); err != nil {
		return nil, fmt.Errorf("read %s weights: %w", s.Name, err)
	}
	return p, nil
}

func (r *Reader) readFloats(n int) ([]float32, error) {
	values := make([]float32, n)
	if err := binary.Read(r.r, r.order, values); err != nil {
		return nil, err
	}
	r.read += 4 * int64(n)
	return values, nil
}

// ExpectEOF verifies the stream is exhausted. Clean EOF returns nil; any
// remaining byte reports ErrTrailingData.
func (r *Reader) ExpectEOF() error {
	var scratch [1]byte
	_, err := io.ReadFull(r.r, scratch[:])
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	return ErrTrailingData
}

// ReadModelFile decodes the weights artifact at path and verifies it holds
// exactly the blocks the schemas describe, nothing more.
func ReadModelFile(path string, schemas []ConvSchema) (Header, []*LayerParams, error) {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	r := NewReader(f)
	h, err := r.ReadHeader()
	if err != nil {
		return h, nil, err
	}

	params := make([]*LayerParams, 0, len(schemas))
	for _, s := range schemas {
		p, err := r.ReadConvolution(s)
		if err != nil {
			return h, nil, err
		}
		params = append(params, p)
	}

	if err := r.ExpectEOF(); err != nil {
		return h, nil, err
	}
	return h, params, nil
}
