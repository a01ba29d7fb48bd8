package worker

import (
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/pkg/dto"
)

func photoPayload(res *models.DetectionResult) dto.PhotoProcessed {
	dets := make([]dto.Detection, 0, len(res.Detections))
	for _, m := range res.Detections {
		dets = append(dets, detection(m))
	}
	return dto.PhotoProcessed{Status: dto.StatusProcessed, Detections: dets}
}

func videoPayload(res *models.VideoProcessingResult) dto.VideoProcessed {
	hits := make([]dto.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, dto.Hit{
			MediaID:    h.MediaID,
			FrameIndex: h.FrameIndex,
			TimestampS: h.TimestampS,
			Match:      detection(h.Match),
		})
	}
	return dto.VideoProcessed{
		Status:    dto.StatusProcessed,
		FPS:       res.FPS,
		FrameSkip: res.FrameSkip,
		Hits:      hits,
	}
}

func detection(m models.MatchResult) dto.Detection {
	return dto.Detection{
		PersonID: m.PersonID,
		Name:     m.Name,
		Distance: m.Distance,
		BBox: dto.BBox{
			Top:    m.BBox.Top,
			Right:  m.BBox.Right,
			Bottom: m.BBox.Bottom,
			Left:   m.BBox.Left,
		},
	}
}
