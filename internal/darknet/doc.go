// Package darknet encodes and decodes the Darknet weights format and its
// companion .cfg network description.
//
// A weights artifact is a fixed header followed by one parameter block per
// convolution, in network order, with no padding anywhere:
//
//	Header:
//	  [4 bytes: major (int32)]
//	  [4 bytes: minor (int32)]
//	  [4 bytes: revision (int32)]
//	  [8 or 4 bytes: seen (int64 if major*10+minor >= 2, else int32)]
//
//	Per-convolution block (float32 throughout):
//	  [filters: biases]
//	  [filters: scales]            only when batch_normalize
//	  [filters: rolling means]     only when batch_normalize
//	  [filters: rolling variances] only when batch_normalize
//	  [filters × inChannels/groups × size²: weights]
//
// The binary format carries no per-layer shape metadata. Decoding needs one
// ConvSchema per block, usually recovered from the paired .cfg file via
// ParseConfig and Config.ConvSchemas.
//
// Byte order is little-endian unless an explicit order is supplied; the
// historical format has no byte-order marker, so artifacts written on a
// big-endian host with its native order are not portable.
//
// Example usage:
//
//	// Write
//	n, err := darknet.WriteModelFile("model.weights", darknet.DefaultHeader(), layers)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = darknet.EmitConfigFile("model.cfg", layers, darknet.DefaultEmitOptions())
//
//	// Read back
//	cfg, err := darknet.ParseConfigFile("model.cfg")
//	hdr, params, err := darknet.ReadModelFile("model.weights", cfg.ConvSchemas())
package darknet
