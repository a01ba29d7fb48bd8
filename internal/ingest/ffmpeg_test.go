package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func rgbImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestReadJPEGSplitsConcatenatedStream(t *testing.T) {
	a := encode(t, rgbImage(color.RGBA{R: 200, A: 255}))
	b := encode(t, rgbImage(color.RGBA{B: 200, A: 255}))

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x13, 0xFF})
	stream.Write(a)
	stream.Write(b)
	stream.Write([]byte{0x00})

	r := bufio.NewReader(&stream)
	got, err := readJPEG(r)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = readJPEG(r)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = readJPEG(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadJPEGTruncated(t *testing.T) {
	a := encode(t, rgbImage(color.RGBA{G: 10, A: 255}))
	_, err := readJPEG(bufio.NewReader(bytes.NewReader(a[:len(a)/2])))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParseRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseRate("30000/1001"), 0.001)
	assert.Equal(t, 25.0, parseRate("25/1"))
	assert.Equal(t, 24.0, parseRate("24"))
	assert.Equal(t, 0.0, parseRate("0/0"))
	assert.Equal(t, 0.0, parseRate("N/A"))
	assert.Equal(t, 0.0, parseRate(""))
}

func TestJPEGFrameRGB(t *testing.T) {
	img, err := jpegFrame(encode(t, rgbImage(color.RGBA{R: 255, A: 255}))).RGB()
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	_, err = jpegFrame(encode(t, gray)).RGB()
	assert.True(t, errors.Is(err, ErrBadFrame))

	_, err = jpegFrame([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}).RGB()
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tb := &tailBuffer{max: 5}
	_, _ = tb.Write([]byte("hello "))
	_, _ = tb.Write([]byte("world"))
	assert.Equal(t, "world", tb.String())
}
