// Package vector implements the single binary codec for stored embeddings:
// fixed-width little-endian float32, one value per dimension. The embedding
// writer and the retriever reader both go through this package so the on-disk
// format has exactly one definition.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a vector into a flat little-endian float32 buffer.
func Encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Decode deserializes a buffer produced by Encode. dim > 0 enforces the
// provider's fixed dimensionality; dim == 0 accepts any well-formed buffer.
func Decode(buf []byte, dim int) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector buffer length %d is not a multiple of 4", len(buf))
	}
	n := len(buf) / 4
	if dim > 0 && n != dim {
		return nil, fmt.Errorf("vector has %d dimensions, expected %d", n, dim)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 for
// mismatched lengths and zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
