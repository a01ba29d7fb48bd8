package models

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EmbeddingDim is the length of every face descriptor.
const EmbeddingDim = 128

// EncodedVectorSize is the size of a persisted descriptor blob.
const EncodedVectorSize = EmbeddingDim * 4

// Vector is a face descriptor. The blob layout shared with the owning
// application is 128 little-endian float32 values in vector order, no header.
type Vector [EmbeddingDim]float32

// MarshalBinary encodes v as a raw 512-byte blob.
func (v Vector) MarshalBinary() ([]byte, error) {
	return v.Bytes(), nil
}

// Bytes is MarshalBinary without the error.
func (v Vector) Bytes() []byte {
	buf := make([]byte, EncodedVectorSize)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (v *Vector) UnmarshalBinary(data []byte) error {
	if len(data) != EncodedVectorSize {
		return fmt.Errorf("decode vector: want %d bytes, got %d", EncodedVectorSize, len(data))
	}
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

// DecodeVector is a convenience wrapper around UnmarshalBinary.
func DecodeVector(data []byte) (Vector, error) {
	var v Vector
	err := v.UnmarshalBinary(data)
	return v, err
}

// VectorFromSlice copies s into a Vector. s must have exactly EmbeddingDim elements.
func VectorFromSlice(s []float32) (Vector, error) {
	var v Vector
	if len(s) != EmbeddingDim {
		return v, fmt.Errorf("descriptor has %d elements, want %d", len(s), EmbeddingDim)
	}
	copy(v[:], s)
	return v, nil
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
