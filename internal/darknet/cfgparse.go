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

// LayerConfig is one parsed layer section. Index counts layer sections
// only; the [net] section is carried separately on Config.
type LayerConfig struct {
	Kind  graph.Kind
	Index int

	// Convolution keys, pre-filled with section defaults.
	BatchNormalize bool
	Filters        int
	Size           int
	Stride         int
	Pad            int
	Groups         int
	Activation     string

	// Refs holds route "layers" or shortcut "from" references.
	Refs []int

	// InChannels and OutChannels come from channel propagation over the
	// section sequence, not from the file.
	InChannels  int
	OutChannels int

	// Raw preserves every key=value pair as written, known or not.
	Raw map[string]string
}

// Config is a parsed network description.
type Config struct {
	Net    NetParams
	Layers []*LayerConfig
}

// ParseConfig reads a network description in the permissive line format
// the target runtime accepts: '#' starts a comment, blank lines are
// skipped, '[section]' opens a section, and key=value lines accumulate
// into it. Unknown keys are preserved; unknown section kinds are carried
// as Other. A missing [net] section leaves the defaults in place.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := &Config{Net: DefaultNetParams()}
	var current *LayerConfig
	inNet := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("line %d: malformed section header %q", lineNo, line)
			}
			section := strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if section == "net" || section == "network" {
				inNet = true
				current = nil
				continue
			}
			inNet = false
			current = newLayerConfig(section, len(cfg.Layers))
			cfg.Layers = append(cfg.Layers, current)
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case inNet:
			if err := applyNetOption(&cfg.Net, key, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case current != nil:
			if err := applyLayerOption(current, key, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		default:
			return nil, fmt.Errorf("line %d: option %q before any section", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	propagateChannels(cfg)
	return cfg, nil
}

// ParseConfigFile parses the network description at path.
func ParseConfigFile(path string) (*Config, error) {
	//nolint:gosec // G304: path comes from trusted caller, not user input.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()
	return ParseConfig(f)
}

// ConvSchemas lists the block schemas a weights artifact paired with this
// configuration must hold, in block order.
func (c *Config) ConvSchemas() []ConvSchema {
	schemas := make([]ConvSchema, 0, len(c.Layers))
	for _, lc := range c.Layers {
		if lc.Kind != graph.KindConvolution {
			continue
		}
		schemas = append(schemas, ConvSchema{
			Name:           fmt.Sprintf("convolutional_%d", lc.Index),
			Filters:        lc.Filters,
			InChannels:     lc.InChannels,
			KernelSize:     lc.Size,
			Groups:         lc.Groups,
			BatchNormalize: lc.BatchNormalize,
		})
	}
	return schemas
}

func kindForSection(section string) graph.Kind {
	switch section {
	case "convolutional", "conv":
		return graph.KindConvolution
	case "maxpool", "max":
		return graph.KindMaxPool
	case "upsample":
		return graph.KindUpsample
	case "route":
		return graph.KindRoute
	case "shortcut":
		return graph.KindShortcut
	case "yolo", "region", "detection":
		return graph.KindDetection
	default:
		return graph.KindOther
	}
}

// newLayerConfig seeds a section with the defaults the target runtime
// assumes for absent keys.
func newLayerConfig(section string, index int) *LayerConfig {
	lc := &LayerConfig{
		Kind:  kindForSection(section),
		Index: index,
		Raw:   make(map[string]string),
	}
	switch lc.Kind {
	case graph.KindConvolution:
		lc.Filters = 1
		lc.Size = 1
		lc.Stride = 1
		lc.Groups = 1
		lc.Activation = "linear"
	case graph.KindMaxPool:
		lc.Size = 2
		lc.Stride = 2
	case graph.KindUpsample:
		lc.Stride = 2
	case graph.KindShortcut:
		lc.Refs = []int{-3}
		lc.Activation = "linear"
	}
	return lc
}

func applyNetOption(net *NetParams, key, value string) error {
	var err error
	switch key {
	case "batch":
		net.Batch, err = strconv.Atoi(value)
	case "subdivisions":
		net.Subdivisions, err = strconv.Atoi(value)
	case "width":
		net.Width, err = strconv.Atoi(value)
	case "height":
		net.Height, err = strconv.Atoi(value)
	case "channels":
		net.Channels, err = strconv.Atoi(value)
	case "momentum":
		net.Momentum, err = strconv.ParseFloat(value, 64)
	case "decay":
		net.Decay, err = strconv.ParseFloat(value, 64)
	default:
		return nil // unknown net keys are ignored
	}
	if err != nil {
		return fmt.Errorf("net option %s: %w", key, err)
	}
	return nil
}

func applyLayerOption(lc *LayerConfig, key, value string) error {
	lc.Raw[key] = value
	var err error
	switch key {
	case "batch_normalize":
		var flag int
		flag, err = strconv.Atoi(value)
		lc.BatchNormalize = flag != 0
	case "filters":
		lc.Filters, err = strconv.Atoi(value)
	case "size":
		lc.Size, err = strconv.Atoi(value)
	case "stride":
		lc.Stride, err = strconv.Atoi(value)
	case "pad":
		lc.Pad, err = strconv.Atoi(value)
	case "groups":
		lc.Groups, err = strconv.Atoi(value)
	case "activation":
		lc.Activation = value
	case "layers", "from":
		lc.Refs, err = parseIntList(value)
	default:
		// Preserved in Raw, not interpreted.
	}
	if err != nil {
		return fmt.Errorf("option %s: %w", key, err)
	}
	return nil
}

func parseIntList(value string) ([]int, error) {
	fields := strings.Split(value, ",")
	refs := make([]int, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		refs = append(refs, n)
	}
	return refs, nil
}

// propagateChannels walks the section sequence with a running channel
// count seeded from [net], mirroring how the target runtime sizes layer
// buffers. Convolutions consume the running count and publish filters;
// route publishes the sum of its resolved references' published counts;
// everything else republishes the running count. A reference that cannot
// be resolved is skipped, never fatal.
func propagateChannels(cfg *Config) {
	channels := cfg.Net.Channels
	for _, lc := range cfg.Layers {
		lc.InChannels = channels
		switch lc.Kind {
		case graph.KindConvolution:
			lc.OutChannels = lc.Filters
		case graph.KindRoute:
			refs := lc.Refs
			if len(refs) == 0 {
				refs = []int{-1}
			}
			sum := 0
			for _, ref := range refs {
				idx := resolveLayerIndex(lc.Index, ref)
				if idx < 0 || idx >= lc.Index {
					continue
				}
				sum += cfg.Layers[idx].OutChannels
			}
			if sum > 0 {
				lc.OutChannels = sum
			} else {
				lc.OutChannels = channels
			}
		default:
			lc.OutChannels = channels
		}
		channels = lc.OutChannels
	}
}

// resolveLayerIndex turns a section reference into an absolute section
// index: non-negative values are absolute, negative values count back
// from the referencing section.
func resolveLayerIndex(current, ref int) int {
	if ref >= 0 {
		return ref
	}
	return current + ref
}
