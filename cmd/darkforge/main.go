// Package main provides the Darkforge converter CLI.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/darkforge-ml/darkforge/darknet"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Darkforge %s\n", version)
			return
		case "verify":
			if err := runVerify(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "darkforge: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("Darkforge - layer graph to Darknet artifact converter")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  verify -weights <file> -cfg <file> [-v]   Check a weights/cfg artifact pair")
	fmt.Println("  version                                   Show version")
}

// runVerify walks a weights artifact against the schemas recovered from
// its companion configuration and reports what it holds.
func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	weightsPath := fs.String("weights", "", "weights artifact to verify")
	cfgPath := fs.String("cfg", "", "companion configuration")
	verbose := fs.Bool("v", false, "print per-layer detail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *weightsPath == "" || *cfgPath == "" {
		return fmt.Errorf("verify needs -weights and -cfg")
	}

	cfg, err := darknet.ParseConfigFile(*cfgPath)
	if err != nil {
		return err
	}
	schemas := cfg.ConvSchemas()
	if *verbose {
		fmt.Printf("%s: %d sections, %d convolutional\n", *cfgPath, len(cfg.Layers), len(schemas))
	}

	// Full model parameter sets are assumed to fit in memory.
	//nolint:gosec // G304: path comes from the command line, which is expected here.
	raw, err := os.ReadFile(*weightsPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	r := darknet.NewReader(bytes.NewReader(raw))
	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	fmt.Printf("version %d.%d.%d, seen %d images\n", h.Major, h.Minor, h.Revision, h.Seen)

	var params int64
	for _, s := range schemas {
		p, err := r.ReadConvolution(s)
		if err != nil {
			return err
		}
		n := int64(len(p.Biases) + len(p.Scales) + len(p.Means) + len(p.Variances) + len(p.Weights))
		params += n
		if *verbose {
			fmt.Printf("  %-18s filters=%-4d in=%-4d size=%d bn=%-5v %8d params\n",
				s.Name, s.Filters, s.InChannels, s.KernelSize, s.BatchNormalize, n)
		}
	}
	if err := r.ExpectEOF(); err != nil {
		return err
	}

	fmt.Printf("%d blocks, %d parameters, %d bytes, xxh3 %016x\n",
		len(schemas), params, len(raw), xxh3.Hash(raw))
	return nil
}
