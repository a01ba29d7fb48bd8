package pipeline

import (
	"fmt"
	"math"
)

// DefaultFPS is used when a video does not report a usable frame rate.
const DefaultFPS = 30.0

// EffectiveFPS replaces zero, negative and non-finite rates with DefaultFPS.
func EffectiveFPS(fps float64) float64 {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return DefaultFPS
	}
	return fps
}

// ShouldAnalyze reports whether frame index i is sampled. With frameSkip
// k > 0 every (k+1)-th frame starting at 0 is analyzed; k <= 0 analyzes all.
func ShouldAnalyze(i, frameSkip int) bool {
	return frameSkip <= 0 || i%(frameSkip+1) == 0
}

// Timestamp is the offset in seconds of frame i.
func Timestamp(i int, fps float64) float64 {
	return float64(i) / fps
}

// ImageSource is the provenance tag stored with embeddings from a photo.
func ImageSource(path string) string {
	return "image:" + path
}

// VideoSource is the provenance tag stored with embeddings from a video frame.
func VideoSource(path string, ts float64) string {
	return fmt.Sprintf("video:%s@%.2fs", path, ts)
}
