// Package ingest decodes video files into frames.
package ingest

import (
	"context"
	"errors"
	"image"
)

// ErrBadFrame marks a frame that decoded but cannot be used: the color
// conversion failed or it does not have three channels. Callers skip it.
var ErrBadFrame = errors.New("unusable frame")

// Frame is one decoded video frame. Release must be called once the frame
// is no longer needed.
type Frame interface {
	RGB() (image.Image, error)
	Release()
}

// FrameSource yields every frame of a video in decode order.
type FrameSource interface {
	// FPS is the container frame rate; 0 when unknown.
	FPS() float64
	// Next returns io.EOF after the last frame.
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Decoder opens frame sources. Open wraps models.ErrDecode when the file
// cannot be opened as a video.
type Decoder interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}
