package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "jobs_processed_total",
		Help:      "Total number of jobs handled, by media type and outcome",
	}, []string{"type", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facerec",
		Name:      "job_duration_seconds",
		Help:      "Wall time spent on one job",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"type"})

	MalformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "malformed_messages_total",
		Help:      "Queue messages dropped because no media id could be parsed",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "frames_processed_total",
		Help:      "Total number of sampled video frames analyzed",
	})

	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "frames_skipped_total",
		Help:      "Sampled frames that could not be decoded or analyzed",
	})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	}, []string{"type"})

	FacesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "faces_resolved_total",
		Help:      "Faces resolved against the identity store, by outcome (matched or enrolled)",
	}, []string{"outcome"})

	OptionalPersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "video_hit_persist_failures_total",
		Help:      "Video hit rows that could not be recorded",
	})

	CallbackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facerec",
		Name:      "callback_failures_total",
		Help:      "Failed calls to the owning application, by operation",
	}, []string{"op"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facerec",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facerec",
		Name:      "queue_depth",
		Help:      "Number of jobs waiting in the queue",
	})

	KnownEmbeddings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facerec",
		Name:      "known_embeddings",
		Help:      "Embeddings scanned by the most recent match",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facerec",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration of the ops server",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
