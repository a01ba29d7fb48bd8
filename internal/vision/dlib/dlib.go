// Package dlib is the dlib-backed face engine. It needs cgo and the dlib
// libraries at build time.
package dlib

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	face "github.com/Kagami/go-face"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/observability"
	"github.com/your-org/facerec/internal/vision"
)

// Analyzer runs dlib HOG or CNN (MMOD) detection plus the dlib ResNet
// encoder. ModelsDir must hold shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and, for cnn,
// mmod_human_face_detector.dat.
type Analyzer struct {
	mu       sync.Mutex
	rec      *face.Recognizer
	cnn      bool
	upsample int
}

func New(cfg config.VisionConfig) (*Analyzer, error) {
	slog.Info("loading dlib models", "dir", cfg.ModelsDir, "model", cfg.Model)
	rec, err := face.NewRecognizer(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models: %w", err)
	}
	return &Analyzer{rec: rec, cnn: cfg.Model == "cnn", upsample: cfg.UpsampleFactor()}, nil
}

// Analyze implements vision.FaceAnalyzer. The recognizer is not safe for
// concurrent use.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) ([]vision.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// go-face takes encoded JPEG; upsampling is done here before encoding.
	scaled := vision.Upscale(img, a.upsample)
	buf, err := vision.EncodeJPEG(scaled, 95)
	if err != nil {
		return nil, fmt.Errorf("%w: encode frame: %w", models.ErrDetection, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	var found []face.Face
	if a.cnn {
		found, err = a.rec.RecognizeCNN(buf)
	} else {
		found, err = a.rec.Recognize(buf)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDetection, err)
	}
	stage := "dlib_hog"
	if a.cnn {
		stage = "dlib_cnn"
	}
	observability.InferenceDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	origin := img.Bounds().Min
	faces := make([]vision.Face, len(found))
	for i, f := range found {
		box := models.BoxFromRect(f.Rectangle).Scale(float64(a.upsample))
		box.Left += origin.X
		box.Right += origin.X
		box.Top += origin.Y
		box.Bottom += origin.Y
		faces[i] = vision.Face{Box: box, Descriptor: models.Vector(f.Descriptor)}
	}
	return faces, nil
}

func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rec != nil {
		a.rec.Close()
		a.rec = nil
	}
}
