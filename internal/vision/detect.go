package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection represents a detected face in source image coordinates.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
}

// Rect rounds the box to integer pixels.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(d.BBox[0]))),
		int(math.Floor(float64(d.BBox[1]))),
		int(math.Ceil(float64(d.BBox[2]))),
		int(math.Ceil(float64(d.BBox[3]))),
	)
}

// Detector runs RetinaFace face detection using ONNX Runtime.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// stride configuration for RetinaFace det_10g
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per pixel at each stride
const anchorsPerStride = 2

const nmsIoU = 0.4

// NewDetector loads the RetinaFace ONNX model.
// opts may be nil (ORT defaults).
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g outputs have no batch dimension. Per stride s there are
	// (640/s)^2 * 2 anchors: 12800, 3200, 800. Landmark outputs are not bound.
	outputs := []struct {
		name  string
		shape ort.Shape
	}{
		{"448", ort.NewShape(12800, 1)}, // scores stride 8
		{"471", ort.NewShape(3200, 1)},  // scores stride 16
		{"494", ort.NewShape(800, 1)},   // scores stride 32
		{"451", ort.NewShape(12800, 4)}, // bboxes stride 8
		{"474", ort.NewShape(3200, 4)},  // bboxes stride 16
		{"497", ort.NewShape(800, 4)},   // bboxes stride 32
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], 0, len(outputs))
	outputValues := make([]ort.Value, len(outputs))
	destroy := func() {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
	}

	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		outputTensors = append(outputTensors, t)
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect runs detection on img resized to the model input. Boxes are in
// img's coordinate space.
func (d *Detector) Detect(img image.Image) ([]Detection, error) {
	b := img.Bounds()
	copy(d.inputTensor.GetData(), preprocessForDetection(img, d.inputW, d.inputH))

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	dets := d.parseDetections(b.Dx(), b.Dy())
	for i := range dets {
		dets[i].BBox[0] += float32(b.Min.X)
		dets[i].BBox[1] += float32(b.Min.Y)
		dets[i].BBox[2] += float32(b.Min.X)
		dets[i].BBox[3] += float32(b.Min.Y)
	}
	return nms(dets, nmsIoU), nil
}

// DetectTiled runs Detect on the whole image and on an n x n grid of
// overlapping tiles, so small faces are seen at n times the resolution.
func (d *Detector) DetectTiled(img image.Image, n int) ([]Detection, error) {
	all, err := d.Detect(img)
	if err != nil || n <= 1 {
		return all, err
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return all, nil
	}
	for _, tile := range tileRects(img.Bounds(), n, 0.2) {
		dets, err := d.Detect(sub.SubImage(tile))
		if err != nil {
			return nil, err
		}
		all = append(all, dets...)
	}
	return nms(all, nmsIoU), nil
}

// tileRects splits bounds into an n x n grid, each tile grown by overlap
// (fraction of the tile size) and clipped to bounds.
func tileRects(bounds image.Rectangle, n int, overlap float64) []image.Rectangle {
	if n <= 1 {
		return []image.Rectangle{bounds}
	}
	tw := float64(bounds.Dx()) / float64(n)
	th := float64(bounds.Dy()) / float64(n)
	padX := int(tw * overlap)
	padY := int(th * overlap)

	tiles := make([]image.Rectangle, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			r := image.Rect(
				bounds.Min.X+int(float64(col)*tw)-padX,
				bounds.Min.Y+int(float64(row)*th)-padY,
				bounds.Min.X+int(float64(col+1)*tw)+padX,
				bounds.Min.Y+int(float64(row+1)*th)+padY,
			).Intersect(bounds)
			if !r.Empty() {
				tiles = append(tiles, r)
			}
		}
	}
	return tiles
}

// parseDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
func (d *Detector) parseDetections(origW, origH int) []Detection {
	var detections []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()   // [N, 1]
		bboxes := d.outputTensors[si+3].GetData() // [N, 4]

		fmW := d.inputW / stride
		fmH := d.inputH / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if score := scores[idx]; score >= d.threshold {
						anchorX := float32(cx) * st
						anchorY := float32(cy) * st

						// distances from the anchor to each edge, in stride units
						x1 := clampF((anchorX-bboxes[idx*4+0]*st)*scaleW, 0, float32(origW))
						y1 := clampF((anchorY-bboxes[idx*4+1]*st)*scaleH, 0, float32(origH))
						x2 := clampF((anchorX+bboxes[idx*4+2]*st)*scaleW, 0, float32(origW))
						y2 := clampF((anchorY+bboxes[idx*4+3]*st)*scaleH, 0, float32(origH))

						detections = append(detections, Detection{
							BBox:       [4]float32{x1, y1, x2, y2},
							Confidence: score,
						})
					}
					idx++
				}
			}
		}
	}

	return detections
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	intersection := max(0, x2-x1) * max(0, y2-y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
