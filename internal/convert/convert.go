// Package convert orchestrates a full model conversion: validate the layer
// sequence, fuse normalization records, write the weights artifact, and
// emit the companion network description.
package convert

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/darkforge-ml/darkforge/internal/darknet"
	"github.com/darkforge-ml/darkforge/internal/fuse"
	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Options configures a conversion. The zero value works: every field falls
// back to its documented default.
type Options struct {
	// Header supplies the weights artifact version triple and seen count.
	// The zero header becomes DefaultHeader, version 0.2.0.
	Header darknet.Header

	// Net supplies [net] training hyperparameters. Unset fields fall back
	// to DefaultNetParams. Width, height and channels are taken from the
	// resolved input shape, not from here.
	Net darknet.NetParams

	// Detection supplies [yolo] parameters. Unset fields fall back to
	// DefaultDetectionParams.
	Detection darknet.DetectionParams

	// Input overrides the model's discovered input shape per dimension.
	Input graph.InputShape

	// Logf receives progress lines. Nil means silent.
	Logf func(format string, args ...any)
}

// Report summarizes what a conversion produced.
type Report struct {
	Layers          int // records surviving fusion
	Convolutions    int // parameter blocks written
	FusedByName     int
	FusedByPosition int
	DroppedNorms    []string

	Parameters    int64 // float32 values in the weights artifact, header excluded
	WeightsBytes  int64
	WeightsDigest uint64 // xxh3 of the weights artifact
	ConfigBytes   int64
	ConfigDigest  uint64 // xxh3 of the cfg artifact
}

// Convert validates and fuses the model, writes the weights artifact at
// weightsPath, emits the network description at cfgPath, and reports what
// it did. Each artifact is all or nothing: on failure the partial file is
// removed, though an artifact that already completed stays in place.
func Convert(model *graph.Model, weightsPath, cfgPath string, opts Options) (*Report, error) {
	opts = withDefaults(opts)
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}

	fused := fuse.Fuse(model.Layers)
	logf("fused %d normalization records by name, %d by position", fused.ByName, fused.ByPosition)
	for _, name := range fused.Dropped {
		logf("dropped unmatched normalization record %s", name)
	}

	input := graph.ResolveInput(model.Input, opts.Input)
	opts.Net.Width = input.Width
	opts.Net.Height = input.Height
	opts.Net.Channels = input.Channels

	report := &Report{
		Layers:          len(fused.Layers),
		FusedByName:     fused.ByName,
		FusedByPosition: fused.ByPosition,
		DroppedNorms:    fused.Dropped,
	}
	for _, rec := range fused.Layers {
		if rec.Kind == graph.KindConvolution {
			report.Convolutions++
		}
	}

	var err error
	report.WeightsBytes, report.WeightsDigest, err = writeArtifact(weightsPath, func(w io.Writer) error {
		_, werr := darknet.WriteModel(w, opts.Header, fused.Layers)
		return werr
	})
	if err != nil {
		return nil, err
	}
	report.Parameters = (report.WeightsBytes - opts.Header.Size()) / 4
	logf("wrote %s: %d bytes, %d parameters in %d blocks",
		weightsPath, report.WeightsBytes, report.Parameters, report.Convolutions)

	emitOpts := darknet.EmitOptions{Net: opts.Net, Detection: opts.Detection}
	report.ConfigBytes, report.ConfigDigest, err = writeArtifact(cfgPath, func(w io.Writer) error {
		return darknet.EmitConfig(w, fused.Layers, emitOpts)
	})
	if err != nil {
		return nil, err
	}
	logf("wrote %s: %d bytes, %d sections", cfgPath, report.ConfigBytes, report.Layers+1)

	return report, nil
}

// writeArtifact streams one output file while counting and digesting the
// bytes. On any error the partial file is removed.
func writeArtifact(path string, write func(io.Writer) error) (int64, uint64, error) {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	hasher := xxh3.New()
	cw := &countingWriter{w: io.MultiWriter(f, hasher)}
	if err := write(cw); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return 0, 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return 0, 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return cw.n, hasher.Sum64(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func withDefaults(opts Options) Options {
	if (opts.Header == darknet.Header{}) {
		opts.Header = darknet.DefaultHeader()
	}

	net := darknet.DefaultNetParams()
	if opts.Net.Batch <= 0 {
		opts.Net.Batch = net.Batch
	}
	if opts.Net.Subdivisions <= 0 {
		opts.Net.Subdivisions = net.Subdivisions
	}
	if opts.Net.Momentum <= 0 {
		opts.Net.Momentum = net.Momentum
	}
	if opts.Net.Decay <= 0 {
		opts.Net.Decay = net.Decay
	}

	det := darknet.DefaultDetectionParams()
	if opts.Detection.Classes <= 0 {
		opts.Detection.Classes = det.Classes
	}
	if opts.Detection.Mask == nil {
		opts.Detection.Mask = det.Mask
	}
	if opts.Detection.Anchors == nil {
		opts.Detection.Anchors = det.Anchors
	}
	return opts
}
