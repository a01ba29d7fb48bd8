package vision

import (
	"context"
	"image"

	"github.com/your-org/facerec/internal/models"
)

// Face is one detected face with its descriptor.
type Face struct {
	Box        models.BoundingBox
	Descriptor models.Vector
}

// FaceAnalyzer detects every face in an RGB image and encodes each one.
// Implementations wrap failures in models.ErrDetection.
type FaceAnalyzer interface {
	Analyze(ctx context.Context, img image.Image) ([]Face, error)
	Close()
}
