package models

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorBinaryRoundTrip(t *testing.T) {
	var v Vector
	for i := range v {
		v[i] = float32(i)*0.013 - 0.7
	}
	v[3] = math.SmallestNonzeroFloat32
	v[4] = -math.MaxFloat32

	blob, err := v.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, blob, EncodedVectorSize)

	got, err := DecodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestVectorLayoutIsLittleEndianInOrder(t *testing.T) {
	var v Vector
	v[0] = 1.5
	v[127] = -2

	blob := v.Bytes()
	assert.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32(blob[0:4]))
	assert.Equal(t, math.Float32bits(-2), binary.LittleEndian.Uint32(blob[508:512]))
	for i := 4; i < 508; i++ {
		assert.Zero(t, blob[i])
	}
}

func TestDecodeVectorRejectsWrongLength(t *testing.T) {
	_, err := DecodeVector(make([]byte, 511))
	require.Error(t, err)

	_, err = DecodeVector(make([]byte, 1024))
	require.Error(t, err)
}

func TestVectorFromSlice(t *testing.T) {
	_, err := VectorFromSlice(make([]float32, 512))
	require.Error(t, err)

	s := make([]float32, EmbeddingDim)
	s[10] = 0.25
	v, err := VectorFromSlice(s)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), v[10])
}

func TestDistance(t *testing.T) {
	var a, b Vector
	assert.Equal(t, 0.0, Distance(a, b))

	b[0] = 3
	b[1] = 4
	assert.Equal(t, 5.0, Distance(a, b))
	assert.Equal(t, 5.0, Distance(b, a))
}

func TestBoundingBoxRect(t *testing.T) {
	box := BoundingBox{Top: 10, Right: 50, Bottom: 60, Left: 20}
	assert.Equal(t, box, BoxFromRect(box.Rect()))
	assert.Equal(t, BoundingBox{Top: 5, Right: 25, Bottom: 30, Left: 10}, box.Scale(2))
	assert.Equal(t, box, box.Scale(1))
}
