// Package pipeline turns photos and videos into identity matches, enrolling
// unknown faces as new people.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/your-org/facerec/internal/ingest"
	"github.com/your-org/facerec/internal/matching"
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/observability"
	"github.com/your-org/facerec/internal/vision"
)

// Store is the write side of the identity store used while analyzing.
type Store interface {
	AddPerson(ctx context.Context, name *string) (int64, error)
	AddEmbedding(ctx context.Context, personID int64, v models.Vector, source string) (int64, error)
	RecordVideoHit(ctx context.Context, hit models.VideoHit) error
}

// Resolver matches a descriptor against known people.
type Resolver interface {
	Resolve(ctx context.Context, v models.Vector) (matching.Resolution, error)
}

type Pipeline struct {
	analyzer vision.FaceAnalyzer
	matcher  Resolver
	store    Store
	decoder  ingest.Decoder
}

func New(analyzer vision.FaceAnalyzer, matcher Resolver, store Store, decoder ingest.Decoder) *Pipeline {
	return &Pipeline{analyzer: analyzer, matcher: matcher, store: store, decoder: decoder}
}

// AnalyzeImage detects, resolves and enrolls every face in an encoded photo.
// Any failure fails the whole photo.
func (p *Pipeline) AnalyzeImage(ctx context.Context, mediaID int64, path string, data []byte) (*models.DetectionResult, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w: %w", path, models.ErrDecode, err)
	}
	img = toRGB(img)

	faces, err := p.analyzer.Analyze(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("analyze image %s: %w", path, err)
	}
	observability.FacesDetected.WithLabelValues(string(models.MediaTypePhoto)).Add(float64(len(faces)))
	slog.Debug("faces found", "media_id", mediaID, "format", format, "faces", len(faces))

	result := &models.DetectionResult{
		MediaID:    mediaID,
		MediaPath:  path,
		Detections: make([]models.MatchResult, 0, len(faces)),
	}
	source := ImageSource(path)
	for _, f := range faces {
		m, err := p.identify(ctx, f, source)
		if err != nil {
			return nil, err
		}
		result.Detections = append(result.Detections, m)
	}
	return result, nil
}

// AnalyzeVideo samples frames of the video at localPath. Frames that fail to
// convert or analyze are skipped, and a read error after the first frame
// ends the video early. Identity store failures abort the video.
// Hits are recorded best effort.
func (p *Pipeline) AnalyzeVideo(ctx context.Context, mediaID int64, path, localPath string, frameSkip int) (*models.VideoProcessingResult, error) {
	src, err := p.decoder.Open(ctx, localPath)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	defer src.Close()

	fps := EffectiveFPS(src.FPS())
	result := &models.VideoProcessingResult{
		MediaID:   mediaID,
		MediaPath: path,
		FPS:       fps,
		FrameSkip: frameSkip,
		Hits:      []models.VideoHit{},
	}

	log := slog.With("media_id", mediaID, "path", path)
	start := time.Now()
	analyzed := 0

	for i := 0; ; i++ {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if i == 0 || ctx.Err() != nil {
				return nil, fmt.Errorf("read video %s: %w: %w", path, models.ErrDecode, err)
			}
			// A read failure after good frames ends the video early.
			observability.FramesSkipped.Inc()
			log.Warn("video ended early", "frame", i, "error", err)
			break
		}
		if !ShouldAnalyze(i, frameSkip) {
			frame.Release()
			continue
		}

		faces, ok := p.analyzeFrame(ctx, log, frame, i)
		frame.Release()
		if !ok {
			continue
		}
		analyzed++

		ts := Timestamp(i, fps)
		source := VideoSource(path, ts)
		for _, f := range faces {
			m, err := p.identify(ctx, f, source)
			if err != nil {
				return nil, err
			}
			hit := models.VideoHit{MediaID: mediaID, FrameIndex: i, TimestampS: ts, Match: m}
			if err := p.store.RecordVideoHit(ctx, hit); err != nil {
				observability.OptionalPersistenceFailures.Inc()
				log.Warn("record video hit", "frame", i, "error", err)
			}
			result.Hits = append(result.Hits, hit)
		}
	}

	log.Info("video analyzed",
		"fps", fps,
		"frame_skip", frameSkip,
		"frames_analyzed", analyzed,
		"hits", len(result.Hits),
		"duration", time.Since(start),
	)
	return result, nil
}

// analyzeFrame returns false when the frame must be skipped.
func (p *Pipeline) analyzeFrame(ctx context.Context, log *slog.Logger, frame ingest.Frame, i int) ([]vision.Face, bool) {
	img, err := frame.RGB()
	if err != nil {
		observability.FramesSkipped.Inc()
		log.Debug("skip frame", "frame", i, "error", err)
		return nil, false
	}
	faces, err := p.analyzer.Analyze(ctx, img)
	if err != nil {
		observability.FramesSkipped.Inc()
		log.Warn("analyze frame", "frame", i, "error", err)
		return nil, false
	}
	observability.FramesProcessed.Inc()
	observability.FacesDetected.WithLabelValues(string(models.MediaTypeVideo)).Add(float64(len(faces)))
	if len(faces) > 0 {
		log.Debug("faces found", "frame", i, "faces", len(faces))
	}
	return faces, true
}

// identify resolves a face and stores its descriptor, enrolling a new
// unnamed person when nothing is close enough.
func (p *Pipeline) identify(ctx context.Context, f vision.Face, source string) (models.MatchResult, error) {
	res, err := p.matcher.Resolve(ctx, f.Descriptor)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("resolve face: %w", err)
	}

	personID := res.PersonID
	if res.Matched {
		observability.FacesResolved.WithLabelValues("matched").Inc()
	} else {
		personID, err = p.store.AddPerson(ctx, nil)
		if err != nil {
			return models.MatchResult{}, fmt.Errorf("enroll person: %w", err)
		}
		observability.FacesResolved.WithLabelValues("enrolled").Inc()
	}

	if _, err := p.store.AddEmbedding(ctx, personID, f.Descriptor, source); err != nil {
		return models.MatchResult{}, fmt.Errorf("store embedding for person %d: %w", personID, err)
	}

	return models.MatchResult{
		PersonID: personID,
		Name:     res.Name,
		Distance: res.Distance,
		BBox:     f.Box,
	}, nil
}

// toRGB converts grayscale, paletted and CMYK photos to RGBA.
func toRGB(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
