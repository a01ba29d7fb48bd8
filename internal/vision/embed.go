package vision

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facerec/internal/models"
)

// Encoder produces 128-d descriptors from face crops with an ONNX model.
type Encoder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewEncoder loads the encoder model. inputName/outputName are the graph's
// tensor names; the model must take [1,3,112,112] and return [1,128].
func NewEncoder(modelPath, inputName, outputName string, opts *ort.SessionOptions) (*Encoder, error) {
	inputW, inputH := 112, 112

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, models.EmbeddingDim))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create encoder session: %w", err)
	}

	return &Encoder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Encode returns the L2-normalized descriptor of a face crop.
func (e *Encoder) Encode(faceImg image.Image) (models.Vector, error) {
	copy(e.inputTensor.GetData(), preprocessForEmbedding(faceImg, e.inputW, e.inputH))

	if err := e.session.Run(); err != nil {
		return models.Vector{}, fmt.Errorf("run encoder: %w", err)
	}

	v, err := models.VectorFromSlice(e.outputTensor.GetData())
	if err != nil {
		return v, err
	}
	normalize(v[:])
	return v, nil
}

func (e *Encoder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}

// normalize performs L2 normalization in-place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
