package dto

const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// BBox is serialized in (top, right, bottom, left) order.
type BBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Detection is one matched or enrolled face.
type Detection struct {
	PersonID int64   `json:"person_id"`
	Name     *string `json:"name"`
	Distance float64 `json:"distance"`
	BBox     BBox    `json:"bbox"`
}

type Hit struct {
	MediaID    int64     `json:"media_id"`
	FrameIndex int       `json:"frame_index"`
	TimestampS float64   `json:"timestamp_s"`
	Match      Detection `json:"match"`
}

// PhotoProcessed is POSTed to /media/{id}/processed for photo jobs.
type PhotoProcessed struct {
	Status     string      `json:"status"`
	Detections []Detection `json:"detections"`
}

// VideoProcessed is POSTed to /media/{id}/processed for video jobs.
type VideoProcessed struct {
	Status    string  `json:"status"`
	FPS       float64 `json:"fps"`
	FrameSkip int     `json:"frame_skip"`
	Hits      []Hit   `json:"hits"`
}

// Failed reports a job that could not be processed.
type Failed struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
