package models

import "errors"

// Error classes shared by the pipeline, the worker and the transports.
// Concrete errors wrap one of these with fmt.Errorf("...: %w").
var (
	// ErrDecode: media cannot be read as an image or video. Fatal for the job.
	ErrDecode = errors.New("decode media")
	// ErrUnsupportedMediaType: metadata declares a type other than photo/video.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrDetection: the detector/encoder failed. Fatal for photos, frame scoped for videos.
	ErrDetection = errors.New("face detection")
	// ErrMetadataFetch: GET of media metadata failed.
	ErrMetadataFetch = errors.New("fetch media metadata")
	// ErrCallback: POST of a result to the owning application failed.
	ErrCallback = errors.New("post result")
	// ErrOptionalPersistence: a best-effort record could not be written.
	ErrOptionalPersistence = errors.New("optional persistence")
	// ErrInvalidJob: the queue payload has no usable media id.
	ErrInvalidJob = errors.New("invalid job payload")
)
