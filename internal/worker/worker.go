// Package worker runs the job loop: pop a message, resolve the media it
// names, analyze it and report the outcome to the owning application.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/observability"
	"github.com/your-org/facerec/internal/queue"
	"github.com/your-org/facerec/pkg/dto"
)

// Application is the owning application's API.
type Application interface {
	FetchMedia(ctx context.Context, mediaID int64) (*dto.Media, error)
	PostProcessed(ctx context.Context, mediaID int64, payload any) error
}

// MediaReader gives access to the media bytes named by a metadata path.
type MediaReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Localize(ctx context.Context, path string) (string, func(), error)
}

// MediaAnalyzer is the analysis pipeline.
type MediaAnalyzer interface {
	AnalyzeImage(ctx context.Context, mediaID int64, path string, data []byte) (*models.DetectionResult, error)
	AnalyzeVideo(ctx context.Context, mediaID int64, path, localPath string, frameSkip int) (*models.VideoProcessingResult, error)
}

type Options struct {
	PollTimeout      time.Duration
	IdlePause        time.Duration
	DefaultFrameSkip int
}

type Worker struct {
	jobs     queue.JobSource
	app      Application
	media    MediaReader
	analyzer MediaAnalyzer
	opts     Options
}

func New(jobs queue.JobSource, app Application, media MediaReader, analyzer MediaAnalyzer, opts Options) *Worker {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	return &Worker{jobs: jobs, app: app, media: media, analyzer: analyzer, opts: opts}
}

// Run processes jobs one at a time until ctx is cancelled. Cancellation is
// observed only between jobs: a popped job always runs to completion.
func (w *Worker) Run(ctx context.Context) error {
	// Pops are not interrupted by ctx either, so a message is never lost
	// between the transport removing it and the worker receiving it.
	jobCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		payload, err := w.jobs.Pop(jobCtx, w.opts.PollTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			slog.Warn("pop job", "error", err)
			w.pause(ctx, time.Second)
			continue
		}

		_ = w.Handle(jobCtx, payload)
		w.pause(ctx, w.opts.IdlePause)
	}
}

// Handle runs one job and returns its error, which has already been
// logged and, when a media id is known, reported to the application.
func (w *Worker) Handle(ctx context.Context, payload []byte) error {
	log := slog.With("job_id", uuid.NewString())

	mediaID, err := dto.ParseMediaID(payload)
	if err != nil {
		observability.MalformedMessages.Inc()
		log.Warn("dropping malformed job", "error", err, "payload", clip(payload, 256))
		return fmt.Errorf("%w: %w", models.ErrInvalidJob, err)
	}
	log = log.With("media_id", mediaID)
	log.Info("job received")

	start := time.Now()
	mediaType, err := w.process(ctx, log, mediaID)
	if mediaType == "" {
		mediaType = "unknown"
	}
	observability.JobDuration.WithLabelValues(mediaType).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.JobsProcessed.WithLabelValues(mediaType, dto.StatusFailed).Inc()
		log.Error("job failed", "type", mediaType, "error", err)
		w.reportFailure(ctx, log, mediaID, err)
		return err
	}

	observability.JobsProcessed.WithLabelValues(mediaType, dto.StatusProcessed).Inc()
	log.Info("job processed", "type", mediaType, "duration", time.Since(start))
	return nil
}

// process fetches metadata, analyzes the media and posts the result. It
// returns the media type once known, for labelling.
func (w *Worker) process(ctx context.Context, log *slog.Logger, mediaID int64) (string, error) {
	media, err := w.app.FetchMedia(ctx, mediaID)
	if err != nil {
		observability.CallbackFailures.WithLabelValues("fetch").Inc()
		return "", err
	}
	log.Debug("metadata fetched", "type", media.Type, "path", media.Path)

	var payload any
	switch models.MediaType(media.Type) {
	case models.MediaTypePhoto:
		payload, err = w.processPhoto(ctx, mediaID, media)
	case models.MediaTypeVideo:
		payload, err = w.processVideo(ctx, mediaID, media)
	default:
		return media.Type, fmt.Errorf("%w: %q", models.ErrUnsupportedMediaType, media.Type)
	}
	if err != nil {
		return media.Type, err
	}

	if err := w.app.PostProcessed(ctx, mediaID, payload); err != nil {
		observability.CallbackFailures.WithLabelValues("processed").Inc()
		return media.Type, err
	}
	return media.Type, nil
}

func (w *Worker) processPhoto(ctx context.Context, mediaID int64, media *dto.Media) (any, error) {
	data, err := w.media.ReadFile(ctx, media.Path)
	if err != nil {
		return nil, err
	}
	res, err := w.analyzer.AnalyzeImage(ctx, mediaID, media.Path, data)
	if err != nil {
		return nil, err
	}
	return photoPayload(res), nil
}

func (w *Worker) processVideo(ctx context.Context, mediaID int64, media *dto.Media) (any, error) {
	frameSkip := w.opts.DefaultFrameSkip
	if media.Meta.FrameSkip != nil {
		frameSkip = *media.Meta.FrameSkip
	}

	local, release, err := w.media.Localize(ctx, media.Path)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := w.analyzer.AnalyzeVideo(ctx, mediaID, media.Path, local, frameSkip)
	if err != nil {
		return nil, err
	}
	return videoPayload(res), nil
}

// reportFailure is best effort: a failed POST is logged and dropped.
func (w *Worker) reportFailure(ctx context.Context, log *slog.Logger, mediaID int64, jobErr error) {
	err := w.app.PostProcessed(ctx, mediaID, dto.Failed{Status: dto.StatusFailed, Error: jobErr.Error()})
	if err != nil {
		observability.CallbackFailures.WithLabelValues("failed").Inc()
		log.Error("report job failure", "error", err)
	}
}

func (w *Worker) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func clip(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
