// Package gocvsrc decodes video with OpenCV. It needs cgo and OpenCV 4 at
// build time.
package gocvsrc

import (
	"context"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"github.com/your-org/facerec/internal/ingest"
	"github.com/your-org/facerec/internal/models"
)

// Decoder opens files with cv::VideoCapture.
type Decoder struct{}

func (Decoder) Open(_ context.Context, path string) (ingest.FrameSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w: %w", path, models.ErrDecode, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("open video %s: %w", path, models.ErrDecode)
	}
	return &source{vc: vc, fps: vc.Get(gocv.VideoCaptureFPS)}, nil
}

type source struct {
	vc  *gocv.VideoCapture
	fps float64
}

func (s *source) FPS() float64 { return s.fps }

func (s *source) Next(ctx context.Context) (ingest.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat := gocv.NewMat()
	if ok := s.vc.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()
		return nil, io.EOF
	}
	return &frame{mat: mat}, nil
}

func (s *source) Close() error {
	return s.vc.Close()
}

type frame struct {
	mat gocv.Mat
}

// RGB converts the BGR mat; ToImage handles the channel swap.
func (f *frame) RGB() (image.Image, error) {
	if ch := f.mat.Channels(); ch != 3 {
		return nil, fmt.Errorf("%w: %d channels", ingest.ErrBadFrame, ch)
	}
	img, err := f.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrBadFrame, err)
	}
	return img, nil
}

func (f *frame) Release() {
	_ = f.mat.Close()
}
