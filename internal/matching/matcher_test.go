package matching

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/storage"
)

func vecAt(x float32) models.Vector {
	var v models.Vector
	v[0] = x
	return v
}

func TestResolveEmptyStore(t *testing.T) {
	m := New(storage.NewMemoryStore(), 0.6)
	res, err := m.Resolve(context.Background(), vecAt(1))
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.True(t, math.IsInf(res.Distance, 1))
}

func TestResolveSelfMatch(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	name := "Carol"
	id, err := s.AddPerson(ctx, &name)
	require.NoError(t, err)
	_, err = s.AddEmbedding(ctx, id, vecAt(0.3), "image:x.jpg")
	require.NoError(t, err)

	res, err := New(s, 0.6).Resolve(ctx, vecAt(0.3))
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, id, res.PersonID)
	assert.Equal(t, 0.0, res.Distance)
	require.NotNil(t, res.Name)
	assert.Equal(t, "Carol", *res.Name)
}

func TestResolveThresholdIsInclusive(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	id, _ := s.AddPerson(ctx, nil)
	_, _ = s.AddEmbedding(ctx, id, vecAt(0), "image:x.jpg")

	res, err := New(s, 0.5).Resolve(ctx, vecAt(0.5))
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 0.5, res.Distance)
	assert.Nil(t, res.Name)

	res, err = New(s, 0.5).Resolve(ctx, vecAt(0.75))
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, int64(0), res.PersonID)
	assert.Equal(t, 0.75, res.Distance)
}

func TestResolveTieKeepsFirst(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	first, _ := s.AddPerson(ctx, nil)
	second, _ := s.AddPerson(ctx, nil)
	_, _ = s.AddEmbedding(ctx, first, vecAt(1), "image:a.jpg")
	_, _ = s.AddEmbedding(ctx, second, vecAt(-1), "image:b.jpg")

	res, err := New(s, 2).Resolve(ctx, vecAt(0))
	require.NoError(t, err)
	assert.Equal(t, first, res.PersonID)
	assert.Equal(t, 1.0, res.Distance)
}

func TestNearestPicksClosest(t *testing.T) {
	known := []models.StoredEmbedding{
		{PersonID: 1, Vector: vecAt(5)},
		{PersonID: 2, Vector: vecAt(1.5)},
		{PersonID: 3, Vector: vecAt(-2)},
	}
	idx, d := Nearest(known, vecAt(1))
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.5, d, 1e-9)
}

type failingSource struct{ err error }

func (f failingSource) LoadEmbeddings(context.Context) ([]models.StoredEmbedding, error) {
	return nil, f.err
}
func (f failingSource) PersonName(context.Context, int64) (*string, error) { return nil, nil }

func TestResolvePropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(failingSource{err: boom}, 0.6).Resolve(context.Background(), vecAt(0))
	assert.ErrorIs(t, err, boom)
}
