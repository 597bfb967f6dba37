package darknet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/darkforge-ml/darkforge/internal/graph"
)

// NetParams fills the leading [net] section. Momentum and decay are fixed
// training hyperparameters supplied by configuration, never derived from
// the model.
type NetParams struct {
	Batch        int
	Subdivisions int
	Width        int
	Height       int
	Channels     int
	Momentum     float64
	Decay        float64
}

// DefaultNetParams returns the section defaults for a 416×416 RGB input.
func DefaultNetParams() NetParams {
	return NetParams{
		Batch:        1,
		Subdivisions: 1,
		Width:        416,
		Height:       416,
		Channels:     3,
		Momentum:     0.9,
		Decay:        0.0005,
	}
}

// DetectionParams fills [yolo] sections. The source graph carries no
// equivalent information, so every field is caller-supplied configuration.
type DetectionParams struct {
	Classes int
	Mask    []int
	Anchors [][2]int // anchor box (width, height) pairs
}

// DefaultDetectionParams returns the COCO-trained YOLOv3 constants.
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		Classes: 80,
		Mask:    []int{6, 7, 8},
		Anchors: [][2]int{
			{10, 13}, {16, 30}, {33, 23},
			{30, 61}, {62, 45}, {59, 119},
			{116, 90}, {156, 198}, {373, 326},
		},
	}
}

// EmitOptions configures the emitted network description.
type EmitOptions struct {
	Net       NetParams
	Detection DetectionParams
}

// DefaultEmitOptions returns EmitOptions with every section default.
func DefaultEmitOptions() EmitOptions {
	return EmitOptions{
		Net:       DefaultNetParams(),
		Detection: DefaultDetectionParams(),
	}
}

// EmitConfig writes the [net] section followed by one section per record,
// in sequence order. Key order within a section is fixed; the target
// runtime's parser is permissive about unknown keys but order-sensitive
// about the known ones. Normalization records were fused away upstream;
// they and records of unknown kinds produce no section.
func EmitConfig(w io.Writer, layers []*graph.Record, opts EmitOptions) error {
	bw := bufio.NewWriter(w)
	writeNetSection(bw, opts.Net)
	for _, rec := range layers {
		writeLayerSection(bw, rec, opts.Detection)
	}
	// bufio keeps the first write error sticky, one Flush reports it.
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// EmitConfigFile writes the network description at path. On any error the
// partial file is removed.
func EmitConfigFile(path string, layers []*graph.Record, opts EmitOptions) error {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := EmitConfig(f, layers, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

func writeNetSection(w *bufio.Writer, net NetParams) {
	fmt.Fprintln(w, "[net]")
	fmt.Fprintf(w, "batch=%d\n", net.Batch)
	fmt.Fprintf(w, "subdivisions=%d\n", net.Subdivisions)
	fmt.Fprintf(w, "width=%d\n", net.Width)
	fmt.Fprintf(w, "height=%d\n", net.Height)
	fmt.Fprintf(w, "channels=%d\n", net.Channels)
	fmt.Fprintf(w, "momentum=%s\n", formatFloat(net.Momentum))
	fmt.Fprintf(w, "decay=%s\n", formatFloat(net.Decay))
	fmt.Fprintln(w)
}

func writeLayerSection(w *bufio.Writer, rec *graph.Record, det DetectionParams) {
	switch rec.Kind {
	case graph.KindConvolution:
		writeConvolutionalSection(w, rec)
	case graph.KindMaxPool:
		fmt.Fprintln(w, "[maxpool]")
		fmt.Fprintf(w, "size=%d\n", rec.PoolSize)
		fmt.Fprintf(w, "stride=%d\n", rec.PoolStride)
		fmt.Fprintln(w)
	case graph.KindUpsample:
		fmt.Fprintln(w, "[upsample]")
		fmt.Fprintf(w, "stride=%d\n", rec.Stride)
		fmt.Fprintln(w)
	case graph.KindRoute:
		fmt.Fprintln(w, "[route]")
		fmt.Fprintf(w, "layers=%s\n", joinRefs(rec.Refs))
		fmt.Fprintln(w)
	case graph.KindShortcut:
		from := -3
		if len(rec.Refs) > 0 {
			from = rec.Refs[0]
		}
		fmt.Fprintln(w, "[shortcut]")
		fmt.Fprintf(w, "from=%d\n", from)
		fmt.Fprintln(w, "activation=linear")
		fmt.Fprintln(w)
	case graph.KindDetection:
		writeDetectionSection(w, det)
	}
}

func writeConvolutionalSection(w *bufio.Writer, rec *graph.Record) {
	fmt.Fprintln(w, "[convolutional]")
	if rec.BatchNormalize {
		fmt.Fprintln(w, "batch_normalize=1")
	}
	fmt.Fprintf(w, "filters=%d\n", rec.Filters)
	fmt.Fprintf(w, "size=%d\n", rec.KernelSize)
	fmt.Fprintf(w, "stride=%d\n", rec.Stride)
	pad := 0
	if rec.Padding > 0 {
		pad = 1
	}
	fmt.Fprintf(w, "pad=%d\n", pad)
	if rec.Groups > 1 {
		fmt.Fprintf(w, "groups=%d\n", rec.Groups)
	}
	fmt.Fprintf(w, "activation=%s\n", activationName(rec.Activation))
	fmt.Fprintln(w)
}

func writeDetectionSection(w *bufio.Writer, det DetectionParams) {
	fmt.Fprintln(w, "[yolo]")
	fmt.Fprintf(w, "mask=%s\n", joinInts(det.Mask))
	fmt.Fprintf(w, "anchors=%s\n", joinAnchors(det.Anchors))
	fmt.Fprintf(w, "classes=%d\n", det.Classes)
	// Training hyperparameters the source graph has no equivalent for.
	fmt.Fprintln(w, "num=9")
	fmt.Fprintln(w, "jitter=.3")
	fmt.Fprintln(w, "ignore_thresh=.5")
	fmt.Fprintln(w, "truth_thresh=1")
	fmt.Fprintln(w, "random=1")
	fmt.Fprintln(w)
}

// activationName maps onto the target's closed activation vocabulary. The
// mapping is lossy: every rectifying kind becomes leaky, anything
// unrecognized falls back to linear.
func activationName(a graph.Activation) string {
	switch a {
	case graph.ActivationLeakyReLU, graph.ActivationReLU:
		return "leaky"
	default:
		return "linear"
	}
}

func joinRefs(refs []int) string {
	if len(refs) == 0 {
		return "-1"
	}
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = strconv.Itoa(ref)
	}
	return strings.Join(parts, ", ")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func joinAnchors(anchors [][2]int) string {
	parts := make([]string, len(anchors))
	for i, a := range anchors {
		parts[i] = fmt.Sprintf("%d,%d", a[0], a[1])
	}
	return strings.Join(parts, ", ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
