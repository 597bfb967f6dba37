// Package convert provides one-call model conversion: validate the layer
// sequence, fuse normalization records, write the binary weights artifact
// and emit the companion network description.
//
// Example:
//
//	report, err := convert.Convert(model, "model.weights", "model.cfg", convert.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d parameters in %d blocks\n", report.Parameters, report.Convolutions)
package convert

import (
	internalconvert "github.com/darkforge-ml/darkforge/internal/convert"
	"github.com/darkforge-ml/darkforge/internal/graph"
)

// Options configures a conversion. The zero value works: every field
// falls back to its documented default.
type Options = internalconvert.Options

// Report summarizes what a conversion produced, including an xxh3 digest
// per artifact for change tracking.
type Report = internalconvert.Report

// Convert validates and fuses the model, writes the weights artifact at
// weightsPath, emits the network description at cfgPath, and reports what
// it did. Each artifact is all or nothing: on failure the partial file is
// removed, though an artifact that already completed stays in place.
func Convert(model *graph.Model, weightsPath, cfgPath string, opts Options) (*Report, error) {
	return internalconvert.Convert(model, weightsPath, cfgPath, opts)
}
