package graph

import "fmt"

// TransposeHWIO permutes a dense kernel buffer from source-major
// [kh][kw][in][out] (HWIO) order into the target-major [out][in][kh][kw]
// (OIHW) order that Record.Weights expects. Values are copied, never
// changed; this is the single layout transform the converter performs.
func TransposeHWIO(src []float32, kh, kw, in, out int) ([]float32, error) {
	if kh <= 0 || kw <= 0 || in <= 0 || out <= 0 {
		return nil, fmt.Errorf("invalid kernel dims %dx%dx%dx%d", kh, kw, in, out)
	}
	if want := kh * kw * in * out; len(src) != want {
		return nil, &ValidationError{
			Err:     ErrShapeMismatch,
			Field:   "weights",
			Details: fmt.Sprintf("expected %d values for %dx%dx%dx%d, got %d", want, kh, kw, in, out, len(src)),
		}
	}

	dst := make([]float32, len(src))
	for h := 0; h < kh; h++ {
		for w := 0; w < kw; w++ {
			for i := 0; i < in; i++ {
				for o := 0; o < out; o++ {
					srcIdx := ((h*kw+w)*in+i)*out + o
					dstIdx := ((o*in+i)*kh+h)*kw + w
					dst[dstIdx] = src[srcIdx]
				}
			}
		}
	}
	return dst, nil
}
