package models

import "image"

type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// BoundingBox uses the (top, right, bottom, left) edge order expected by the
// owning application. Do not reorder the fields.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// BoxFromRect converts an image rectangle (Min inclusive, Max exclusive).
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// Rect is the inverse of BoxFromRect.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Scale divides every edge by f. Used to map boxes found on an upsampled
// frame back to source coordinates.
func (b BoundingBox) Scale(f float64) BoundingBox {
	if f == 1 || f <= 0 {
		return b
	}
	return BoundingBox{
		Top:    int(float64(b.Top) / f),
		Right:  int(float64(b.Right) / f),
		Bottom: int(float64(b.Bottom) / f),
		Left:   int(float64(b.Left) / f),
	}
}

// MatchResult is the per-face outcome reported to the owning application.
type MatchResult struct {
	PersonID int64       `json:"person_id"`
	Name     *string     `json:"name"`
	Distance float64     `json:"distance"`
	BBox     BoundingBox `json:"bbox"`
}

// VideoHit is a MatchResult located in a video frame.
type VideoHit struct {
	MediaID    int64       `json:"media_id"`
	FrameIndex int         `json:"frame_index"`
	TimestampS float64     `json:"timestamp_s"`
	Match      MatchResult `json:"match"`
}

// DetectionResult is the output of a photo job.
type DetectionResult struct {
	MediaID    int64         `json:"media_id"`
	MediaPath  string        `json:"media_path"`
	Detections []MatchResult `json:"detections"`
}

// VideoProcessingResult is the output of a video job.
type VideoProcessingResult struct {
	MediaID   int64      `json:"media_id"`
	MediaPath string     `json:"media_path"`
	FPS       float64    `json:"fps"`
	FrameSkip int        `json:"frame_skip"`
	Hits      []VideoHit `json:"hits"`
}

// Job is a dequeued work item after metadata resolution.
type Job struct {
	MediaID   int64
	Type      MediaType
	Path      string
	FrameSkip int
}
