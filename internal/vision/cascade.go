package vision

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

const (
	cascadeMinSize = 60
	cascadeFloor   = 16
	cascadeQuality = 5.0
)

// CascadeDetector is the CPU-cheap pixel-intensity cascade detector.
type CascadeDetector struct {
	classifier *pigo.Pigo
	minSize    int
}

// NewCascadeDetector unpacks a pigo cascade file. upsample lowers the
// minimum face size so smaller faces are found, like image upsampling does
// for HOG detectors.
func NewCascadeDetector(path string, upsample int) (*CascadeDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &CascadeDetector{classifier: classifier, minSize: minFaceSize(upsample)}, nil
}

func minFaceSize(upsample int) int {
	if upsample < 1 {
		upsample = 1
	}
	return max(cascadeFloor, cascadeMinSize/upsample)
}

// Detect returns face rectangles in img's coordinate space.
func (c *CascadeDetector) Detect(img image.Image) []image.Rectangle {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()

	params := pigo.CascadeParams{
		MinSize:     c.minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: grayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := c.classifier.RunCascade(params, 0.0)
	dets = c.classifier.ClusterDetections(dets, 0.2)

	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q <= cascadeQuality {
			continue
		}
		x := b.Min.X + det.Col - det.Scale/2
		y := b.Min.Y + det.Row - det.Scale/2
		faces = append(faces, image.Rect(x, y, x+det.Scale, y+det.Scale).Intersect(b))
	}
	return faces
}
