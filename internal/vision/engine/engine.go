// Package engine selects the face analyzer implementation from config.
package engine

import (
	"fmt"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/vision"
	"github.com/your-org/facerec/internal/vision/dlib"
)

// Open loads the engine named by cfg.Engine. Call Close on the result at
// shutdown.
func Open(cfg config.VisionConfig) (vision.FaceAnalyzer, error) {
	switch cfg.Engine {
	case "dlib":
		return dlib.New(cfg)
	case "onnx":
		return vision.NewONNXAnalyzer(cfg)
	default:
		return nil, fmt.Errorf("unknown vision engine %q", cfg.Engine)
	}
}
