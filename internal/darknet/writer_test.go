package darknet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/darkforge-ml/darkforge/internal/graph"
)

// createTestConv builds a fused convolution record with ramp-valued
// parameters: filters=2, inChannels=1, kernel 1x1.
func createTestConv() *graph.Record {
	return &graph.Record{
		Name:           "conv2d_1",
		Kind:           graph.KindConvolution,
		Filters:        2,
		InChannels:     1,
		KernelSize:     1,
		Stride:         1,
		Groups:         1,
		BatchNormalize: true,
		Biases:         []float32{1, 2},
		Scales:         []float32{3, 4},
		Shifts:         []float32{11, 12},
		Means:          []float32{5, 6},
		Variances:      []float32{7, 8},
		Weights:        []float32{9, 10},
	}
}

func floatBytes(t *testing.T, values []float32) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, values); err != nil {
		t.Fatalf("write floats: %v", err)
	}
	return buf.Bytes()
}

func TestWriteHeaderWideSeen(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)

	h := DefaultHeader()
	h.Seen = 1234
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}

	if w.BytesWritten() != 20 {
		t.Errorf("BytesWritten = %d, want 20", w.BytesWritten())
	}

	want := new(bytes.Buffer)
	for _, v := range []int32{0, 2, 0} {
		_ = binary.Write(want, binary.LittleEndian, v)
	}
	_ = binary.Write(want, binary.LittleEndian, int64(1234))
	if !bytes.Equal(buf.Bytes(), want.Bytes()) {
		t.Errorf("header bytes = %x, want %x", buf.Bytes(), want.Bytes())
	}
}

func TestWriteHeaderNarrowSeen(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)

	h := Header{Major: 0, Minor: 1, Revision: 0, Seen: 77}
	if h.WideSeen() {
		t.Fatal("version 0.1 must use the narrow seen field")
	}
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}

	if w.BytesWritten() != 16 {
		t.Errorf("BytesWritten = %d, want 16", w.BytesWritten())
	}

	var tail int32
	if err := binary.Read(bytes.NewReader(buf.Bytes()[12:]), binary.LittleEndian, &tail); err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if tail != 77 {
		t.Errorf("seen = %d, want 77", tail)
	}
}

func TestHeaderSize(t *testing.T) {
	if got := DefaultHeader().Size(); got != 20 {
		t.Errorf("Size = %d, want 20", got)
	}
	if got := (Header{Minor: 1}).Size(); got != 16 {
		t.Errorf("Size = %d, want 16", got)
	}
	if got := (Header{Major: 1}).Size(); got != 20 {
		t.Errorf("Size = %d, want 20", got)
	}
}

func TestWriteConvolutionFieldOrder(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewWriter(buf)

	if err := w.WriteConvolution(createTestConv()); err != nil {
		t.Fatalf("WriteConvolution failed: %v", err)
	}

	// biases, scales, means, variances, weights, back to back.
	want := floatBytes(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("block bytes = %x, want %x", buf.Bytes(), want)
	}
}

func TestWriteConvolutionNoNormalization(t *testing.T) {
	rec := createTestConv()
	rec.BatchNormalize = false
	rec.Scales, rec.Shifts, rec.Means, rec.Variances = nil, nil, nil, nil

	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	if err := w.WriteConvolution(rec); err != nil {
		t.Fatalf("WriteConvolution failed: %v", err)
	}

	// No placeholder bytes between biases and weights.
	want := floatBytes(t, []float32{1, 2, 9, 10})
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("block bytes = %x, want %x", buf.Bytes(), want)
	}
}

func TestWriteConvolutionSynthesizesBiases(t *testing.T) {
	rec := createTestConv()
	rec.Biases = nil

	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	if err := w.WriteConvolution(rec); err != nil {
		t.Fatalf("WriteConvolution failed: %v", err)
	}

	want := floatBytes(t, []float32{0, 0, 3, 4, 5, 6, 7, 8, 9, 10})
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("block bytes = %x, want %x", buf.Bytes(), want)
	}
}

func TestWriteConvolutionShapeMismatch(t *testing.T) {
	rec := createTestConv()
	rec.Weights = []float32{9} // expects 2

	buf := new(bytes.Buffer)
	w := NewWriter(buf)
	err := w.WriteConvolution(rec)
	if !errors.Is(err, graph.ErrShapeMismatch) {
		t.Fatalf("error = %v, want shape mismatch", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes before failing, want 0", buf.Len())
	}
	if w.BytesWritten() != 0 {
		t.Errorf("BytesWritten = %d, want 0", w.BytesWritten())
	}
}

func TestWriteConvolutionRejectsOtherKinds(t *testing.T) {
	rec := &graph.Record{Name: "pool", Kind: graph.KindMaxPool}
	w := NewWriter(new(bytes.Buffer))
	if err := w.WriteConvolution(rec); !errors.Is(err, ErrNotConvolution) {
		t.Fatalf("error = %v, want ErrNotConvolution", err)
	}
}

func TestWriteModelSkipsNonConvolutions(t *testing.T) {
	conv := createTestConv()
	layers := []*graph.Record{
		conv,
		{Name: "pool", Kind: graph.KindMaxPool, PoolSize: 2, PoolStride: 2},
		{Name: "yolo", Kind: graph.KindDetection},
	}

	buf := new(bytes.Buffer)
	n, err := WriteModel(buf, DefaultHeader(), layers)
	if err != nil {
		t.Fatalf("WriteModel failed: %v", err)
	}

	want := DefaultHeader().Size() + SchemaOf(conv).BlockSize()
	if n != want {
		t.Errorf("bytes written = %d, want %d", n, want)
	}
	if int64(buf.Len()) != want {
		t.Errorf("buffer length = %d, want %d", buf.Len(), want)
	}
}

func TestBlockSize(t *testing.T) {
	s := ConvSchema{Filters: 4, InChannels: 6, KernelSize: 3, Groups: 2, BatchNormalize: true}
	// weights: 4 * (6/2) * 9 = 108; plus biases 4 and 3*4 normalization.
	if got := s.WeightCount(); got != 108 {
		t.Errorf("WeightCount = %d, want 108", got)
	}
	if got := s.BlockSize(); got != 4*(108+4+12) {
		t.Errorf("BlockSize = %d, want %d", got, 4*(108+4+12))
	}

	s.BatchNormalize = false
	if got := s.BlockSize(); got != 4*(108+4) {
		t.Errorf("BlockSize = %d, want %d", got, 4*(108+4))
	}
}

func TestWriteModelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.weights")
	conv := createTestConv()

	n, err := WriteModelFile(path, DefaultHeader(), []*graph.Record{conv})
	if err != nil {
		t.Fatalf("WriteModelFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != n {
		t.Errorf("file size = %d, want %d", info.Size(), n)
	}
}

func TestWriteModelFileRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.weights")
	bad := createTestConv()
	bad.Weights = nil

	if _, err := WriteModelFile(path, DefaultHeader(), []*graph.Record{bad}); err == nil {
		t.Fatal("WriteModelFile succeeded with a bad record")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial file still exists: %v", err)
	}
}
