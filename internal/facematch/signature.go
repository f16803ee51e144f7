package facematch

import "math"

// SignatureDim is the length of every comparable face signature.
const SignatureDim = 128

// Signature is a face descriptor produced by the embedding sidecar.
// Only signatures of exactly SignatureDim finite values are comparable.
type Signature []float32

// Valid reports whether s can take part in a comparison.
func (s Signature) Valid() bool {
	if len(s) != SignatureDim {
		return false
	}
	for _, v := range s {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// SignatureFromFloat64 converts a float64 slice (JSON decoded descriptors) to a Signature.
func SignatureFromFloat64(values []float64) Signature {
	if values == nil {
		return nil
	}
	s := make(Signature, len(values))
	for i, v := range values {
		s[i] = float32(v)
	}
	return s
}
