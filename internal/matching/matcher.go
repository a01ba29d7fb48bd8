package matching

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/observability"
)

// EmbeddingSource is the read-only slice of the identity store the matcher needs.
type EmbeddingSource interface {
	LoadEmbeddings(ctx context.Context) ([]models.StoredEmbedding, error)
	PersonName(ctx context.Context, id int64) (*string, error)
}

// Resolution is the outcome of matching one descriptor.
// When Matched is false PersonID is zero and Distance is the best distance
// seen (+Inf for an empty store).
type Resolution struct {
	PersonID int64
	Matched  bool
	Name     *string
	Distance float64
}

// Matcher resolves descriptors against every stored embedding by linear scan.
type Matcher struct {
	store     EmbeddingSource
	threshold float64
}

func New(store EmbeddingSource, threshold float64) *Matcher {
	return &Matcher{store: store, threshold: threshold}
}

func (m *Matcher) Threshold() float64 { return m.threshold }

// Resolve finds the nearest stored embedding. A match is accepted when its
// distance is at or below the threshold; ties keep the first embedding in
// store order.
func (m *Matcher) Resolve(ctx context.Context, v models.Vector) (Resolution, error) {
	start := time.Now()
	known, err := m.store.LoadEmbeddings(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load embeddings: %w", err)
	}
	observability.KnownEmbeddings.Set(float64(len(known)))

	idx, dist := Nearest(known, v)
	observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())

	if idx < 0 || dist > m.threshold {
		return Resolution{Distance: dist}, nil
	}

	personID := known[idx].PersonID
	name, err := m.store.PersonName(ctx, personID)
	if err != nil {
		return Resolution{}, fmt.Errorf("person %d name: %w", personID, err)
	}
	return Resolution{PersonID: personID, Matched: true, Name: name, Distance: dist}, nil
}

// Nearest returns the index and distance of the closest embedding, or
// (-1, +Inf) when known is empty.
func Nearest(known []models.StoredEmbedding, v models.Vector) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i := range known {
		// strict < keeps the earliest of equal distances
		if d := models.Distance(known[i].Vector, v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
