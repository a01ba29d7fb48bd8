package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldAnalyze(t *testing.T) {
	var got []int
	for i := 0; i < 20; i++ {
		if ShouldAnalyze(i, 5) {
			got = append(got, i)
		}
	}
	assert.Equal(t, []int{0, 6, 12, 18}, got)

	for i := 0; i < 5; i++ {
		assert.True(t, ShouldAnalyze(i, 0))
		assert.True(t, ShouldAnalyze(i, -3))
	}
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, 2.0, Timestamp(50, 25))
	assert.Equal(t, 0.0, Timestamp(0, 30))
}

func TestEffectiveFPS(t *testing.T) {
	assert.Equal(t, 24.0, EffectiveFPS(24))
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.Equal(t, DefaultFPS, EffectiveFPS(bad))
	}
}

func TestSources(t *testing.T) {
	assert.Equal(t, "image:media/1.jpg", ImageSource("media/1.jpg"))
	assert.Equal(t, "video:media/2.mp4@1.23s", VideoSource("media/2.mp4", 1.2345))
	assert.Equal(t, "video:v.mp4@0.00s", VideoSource("v.mp4", 0))
}
