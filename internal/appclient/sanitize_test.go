package appclient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/facerec/pkg/dto"
)

func TestSanitize_Scalars(t *testing.T) {
	assert.Nil(t, Sanitize(math.NaN()))
	assert.Nil(t, Sanitize(math.Inf(1)))
	assert.Nil(t, Sanitize(math.Inf(-1)))
	assert.Nil(t, Sanitize(float32(math.Inf(1))))
	assert.Equal(t, 0.25, Sanitize(0.25))
	assert.Equal(t, "x", Sanitize("x"))
	assert.Equal(t, 7, Sanitize(7))
	assert.Nil(t, Sanitize(nil))
}

func TestSanitize_Nested(t *testing.T) {
	in := map[string]any{
		"a": []any{1.5, math.NaN(), map[string]any{"b": math.Inf(-1)}},
		"c": []float64{math.Inf(1), 2},
	}
	want := map[string]any{
		"a": []any{1.5, nil, map[string]any{"b": nil}},
		"c": []any{nil, 2.0},
	}
	assert.Equal(t, want, Sanitize(in))
}

func TestSanitize_StructsUseJSONNames(t *testing.T) {
	name := "alice"
	in := dto.VideoProcessed{
		Status:    dto.StatusProcessed,
		FPS:       math.NaN(),
		FrameSkip: 0,
		Hits: []dto.Hit{{
			MediaID:    1,
			FrameIndex: 6,
			TimestampS: 0.2,
			Match:      dto.Detection{PersonID: 2, Name: &name, Distance: 0.3},
		}},
	}
	got := Sanitize(in).(map[string]any)

	assert.Nil(t, got["fps"])
	assert.Equal(t, 0, got["frame_skip"])
	hit := got["hits"].([]any)[0].(map[string]any)
	assert.Equal(t, 6, hit["frame_index"])
	match := hit["match"].(map[string]any)
	assert.Equal(t, "alice", match["name"])
	assert.Equal(t, 0.3, match["distance"])
}

func TestSanitize_OmitEmptyAndSkip(t *testing.T) {
	type inner struct {
		X float64 `json:"x"`
	}
	type payload struct {
		inner
		Kept    int     `json:"kept"`
		Omitted *int    `json:"omitted,omitempty"`
		Hidden  string  `json:"-"`
		Plain   float32
		private int
	}
	got := Sanitize(payload{Kept: 1, Hidden: "h", Plain: 2, private: 3})
	assert.Equal(t, map[string]any{"kept": 1, "Plain": float32(2)}, got)
}

func TestSanitize_Idempotent(t *testing.T) {
	in := dto.PhotoProcessed{
		Status:     dto.StatusProcessed,
		Detections: []dto.Detection{{PersonID: 1, Distance: math.Inf(1)}},
	}
	once := Sanitize(in)
	assert.Equal(t, once, Sanitize(once))
}
