package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/observability"
)

// ONNXAnalyzer detects faces with RetinaFace (model "cnn") or the pigo
// cascade (model "hog") and encodes them with a 128-d ONNX encoder.
type ONNXAnalyzer struct {
	mu       sync.Mutex
	detect   func(image.Image) ([]image.Rectangle, error)
	encoder  *Encoder
	closers  []func()
	ownsEnv  bool
	stageTag string
}

// NewONNXAnalyzer loads the models named in cfg from cfg.ModelsDir.
func NewONNXAnalyzer(cfg config.VisionConfig) (*ONNXAnalyzer, error) {
	a := &ONNXAnalyzer{stageTag: cfg.Model}

	if !ort.IsInitialized() {
		lib := cfg.ORTLibrary
		if lib == "" {
			lib = defaultORTLibrary()
		}
		ort.SetSharedLibraryPath(lib)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx runtime: %w", err)
		}
		a.ownsEnv = true
	}

	switch cfg.Model {
	case "cnn":
		path := filepath.Join(cfg.ModelsDir, cfg.DetectorFile)
		slog.Info("loading detection model", "path", path)
		det, err := NewDetector(path, float32(cfg.DetectionThreshold), nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load detector: %w", err)
		}
		a.closers = append(a.closers, det.Close)
		n := cfg.UpsampleFactor()
		a.detect = func(img image.Image) ([]image.Rectangle, error) {
			dets, err := det.DetectTiled(img, n)
			if err != nil {
				return nil, err
			}
			rects := make([]image.Rectangle, len(dets))
			for i, d := range dets {
				rects[i] = d.Rect()
			}
			return rects, nil
		}
	default:
		path := filepath.Join(cfg.ModelsDir, cfg.CascadeFile)
		slog.Info("loading cascade", "path", path)
		cascade, err := NewCascadeDetector(path, cfg.UpsampleFactor())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load cascade: %w", err)
		}
		a.detect = func(img image.Image) ([]image.Rectangle, error) {
			return cascade.Detect(img), nil
		}
	}

	path := filepath.Join(cfg.ModelsDir, cfg.EncoderFile)
	slog.Info("loading encoder model", "path", path)
	enc, err := NewEncoder(path, cfg.EncoderInput, cfg.EncoderOutput, nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load encoder: %w", err)
	}
	a.encoder = enc
	a.closers = append(a.closers, enc.Close)

	return a, nil
}

// Analyze implements FaceAnalyzer. Sessions reuse bound tensors, so calls
// are serialized.
func (a *ONNXAnalyzer) Analyze(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	rects, err := a.detect(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDetection, err)
	}
	observability.InferenceDuration.WithLabelValues("detect_" + a.stageTag).Observe(time.Since(start).Seconds())

	faces := make([]Face, 0, len(rects))
	for _, r := range rects {
		crop := cropFace(img, r)
		if crop == nil {
			continue
		}
		start = time.Now()
		v, err := a.encoder.Encode(crop)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrDetection, err)
		}
		observability.InferenceDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
		faces = append(faces, Face{Box: models.BoxFromRect(r), Descriptor: v})
	}
	return faces, nil
}

// Close releases all ONNX sessions.
func (a *ONNXAnalyzer) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.ownsEnv {
		_ = ort.DestroyEnvironment()
		a.ownsEnv = false
	}
}

// defaultORTLibrary returns the ONNX Runtime shared library name for the OS.
func defaultORTLibrary() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
