package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facerec/internal/ingest"
	"github.com/your-org/facerec/internal/matching"
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/internal/storage"
	"github.com/your-org/facerec/internal/vision"
)

type analyzerFunc func(img image.Image) ([]vision.Face, error)

func (f analyzerFunc) Analyze(_ context.Context, img image.Image) ([]vision.Face, error) {
	return f(img)
}
func (analyzerFunc) Close() {}

// fakeFrame encodes its index in the image width.
type fakeFrame struct {
	index int
	bad   bool
}

func (f fakeFrame) RGB() (image.Image, error) {
	if f.bad {
		return nil, ingest.ErrBadFrame
	}
	return image.NewRGBA(image.Rect(0, 0, f.index+1, 1)), nil
}
func (fakeFrame) Release() {}

type fakeSource struct {
	fps    float64
	frames []fakeFrame
	next   int
	// readErr is returned instead of frame readErrAt.
	readErr   error
	readErrAt int
}

func (s *fakeSource) FPS() float64 { return s.fps }
func (s *fakeSource) Next(context.Context) (ingest.Frame, error) {
	if s.readErr != nil && s.next == s.readErrAt {
		return nil, s.readErr
	}
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}
func (s *fakeSource) Close() error { return nil }

type fakeDecoder struct {
	src *fakeSource
	err error
}

func (d fakeDecoder) Open(context.Context, string) (ingest.FrameSource, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.src, nil
}

func frames(n int) []fakeFrame {
	out := make([]fakeFrame, n)
	for i := range out {
		out[i] = fakeFrame{index: i}
	}
	return out
}

func frameIndex(img image.Image) int { return img.Bounds().Dx() - 1 }

var box = models.BoundingBox{Top: 1, Right: 9, Bottom: 9, Left: 1}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestAnalyzeImageMatchesExistingPerson(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	name := "Dana"
	pid, err := store.AddPerson(ctx, &name)
	require.NoError(t, err)
	_, err = store.AddEmbedding(ctx, pid, models.Vector{}, "image:seed.jpg")
	require.NoError(t, err)

	analyzer := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return []vision.Face{{Box: box, Descriptor: models.Vector{}}}, nil
	})
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{})

	res, err := p.AnalyzeImage(ctx, 11, "media/a.png", pngBytes(t))
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	d := res.Detections[0]
	assert.Equal(t, pid, d.PersonID)
	assert.Equal(t, 0.0, d.Distance)
	require.NotNil(t, d.Name)
	assert.Equal(t, "Dana", *d.Name)
	assert.Equal(t, box, d.BBox)

	emb := store.Embeddings()
	require.Len(t, emb, 2)
	assert.Equal(t, pid, emb[1].PersonID)
	assert.Equal(t, "image:media/a.png", emb[1].Source)
}

func TestAnalyzeImageEnrollsUnknownFace(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	var v models.Vector
	v[3] = 1
	analyzer := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return []vision.Face{{Box: box, Descriptor: v}, {Box: box, Descriptor: v}}, nil
	})
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{})

	res, err := p.AnalyzeImage(ctx, 1, "p.png", pngBytes(t))
	require.NoError(t, err)
	require.Len(t, res.Detections, 2)
	// first face enrolls, second matches the fresh enrollment
	assert.Nil(t, res.Detections[0].Name)
	assert.Equal(t, res.Detections[0].PersonID, res.Detections[1].PersonID)
	assert.Equal(t, 0.0, res.Detections[1].Distance)

	people, _ := store.ListPeople(ctx)
	assert.Len(t, people, 1)
}

func TestAnalyzeImageFailures(t *testing.T) {
	store := storage.NewMemoryStore()
	boom := errors.New("model crashed")
	failing := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return nil, boom
	})
	p := New(failing, matching.New(store, 0.6), store, fakeDecoder{})

	_, err := p.AnalyzeImage(context.Background(), 1, "bad.jpg", []byte("not an image"))
	assert.ErrorIs(t, err, models.ErrDecode)

	_, err = p.AnalyzeImage(context.Background(), 1, "p.png", pngBytes(t))
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzeVideoFaceInOneFrame(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	analyzer := analyzerFunc(func(img image.Image) ([]vision.Face, error) {
		if frameIndex(img) == 2 {
			return []vision.Face{{Box: box}}, nil
		}
		return nil, nil
	})
	src := &fakeSource{fps: 10, frames: frames(3)}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	res, err := p.AnalyzeVideo(ctx, 5, "v.mp4", "/tmp/v.mp4", 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.FPS)
	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, 2, hit.FrameIndex)
	assert.Equal(t, 0.2, hit.TimestampS)
	assert.Equal(t, int64(5), hit.MediaID)

	people, _ := store.ListPeople(ctx)
	require.Len(t, people, 1)
	assert.Equal(t, people[0].ID, hit.Match.PersonID)
	assert.Len(t, store.VideoHits(), 1)
	assert.Equal(t, "video:v.mp4@0.20s", store.Embeddings()[0].Source)
}

func TestAnalyzeVideoSkipsFailingFrames(t *testing.T) {
	store := storage.NewMemoryStore()
	analyzer := analyzerFunc(func(img image.Image) ([]vision.Face, error) {
		if frameIndex(img) == 1 {
			return nil, models.ErrDetection
		}
		return []vision.Face{{Box: box}}, nil
	})
	src := &fakeSource{fps: 25, frames: frames(3)}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	res, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 0, res.Hits[0].FrameIndex)
	assert.Equal(t, 2, res.Hits[1].FrameIndex)
}

func TestAnalyzeVideoSamplingAndBadFrames(t *testing.T) {
	store := storage.NewMemoryStore()
	var seen []int
	analyzer := analyzerFunc(func(img image.Image) ([]vision.Face, error) {
		seen = append(seen, frameIndex(img))
		return nil, nil
	})
	fs := frames(20)
	fs[12].bad = true
	src := &fakeSource{fps: 0, frames: fs}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	res, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 6, 18}, seen)
	assert.Equal(t, DefaultFPS, res.FPS)
	assert.Equal(t, 5, res.FrameSkip)
	assert.NotNil(t, res.Hits)
	assert.Empty(t, res.Hits)
}

func TestAnalyzeVideoOpenFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(analyzerFunc(nil), matching.New(store, 0.6), store,
		fakeDecoder{err: errors.Join(models.ErrDecode, errors.New("moov atom not found"))})

	_, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 0)
	assert.ErrorIs(t, err, models.ErrDecode)
}

// hitFailStore fails every optional write.
type hitFailStore struct {
	*storage.MemoryStore
}

func (hitFailStore) RecordVideoHit(context.Context, models.VideoHit) error {
	return models.ErrOptionalPersistence
}

func TestAnalyzeVideoSwallowsHitPersistenceErrors(t *testing.T) {
	store := hitFailStore{storage.NewMemoryStore()}
	analyzer := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return []vision.Face{{Box: box}}, nil
	})
	src := &fakeSource{fps: 10, frames: frames(2)}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	res, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 0)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
}

// enrollFailStore cannot create people.
type enrollFailStore struct {
	*storage.MemoryStore
}

var errStoreDown = errors.New("store down")

func (enrollFailStore) AddPerson(context.Context, *string) (int64, error) {
	return 0, errStoreDown
}

func TestAnalyzeVideoAbortsOnStoreError(t *testing.T) {
	store := enrollFailStore{storage.NewMemoryStore()}
	analyzer := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return []vision.Face{{Box: box}}, nil
	})
	src := &fakeSource{fps: 10, frames: frames(2)}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	_, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 0)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestAnalyzeVideoReadErrorAfterFramesEndsEarly(t *testing.T) {
	store := storage.NewMemoryStore()
	analyzer := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return []vision.Face{{Box: box}}, nil
	})
	src := &fakeSource{
		fps:       10,
		frames:    frames(4),
		readErr:   errors.New("read frame 2: jpeg frame exceeds 33554432 bytes"),
		readErrAt: 2,
	}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	res, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 0, res.Hits[0].FrameIndex)
	assert.Equal(t, 1, res.Hits[1].FrameIndex)
	assert.Len(t, store.Embeddings(), 2)
}

func TestAnalyzeVideoReadErrorOnFirstFrameFails(t *testing.T) {
	store := storage.NewMemoryStore()
	analyzer := analyzerFunc(func(image.Image) ([]vision.Face, error) {
		return []vision.Face{{Box: box}}, nil
	})
	src := &fakeSource{
		fps:       10,
		frames:    frames(4),
		readErr:   errors.New("broken pipe"),
		readErrAt: 0,
	}
	p := New(analyzer, matching.New(store, 0.6), store, fakeDecoder{src: src})

	_, err := p.AnalyzeVideo(context.Background(), 5, "v.mp4", "/tmp/v.mp4", 0)
	assert.ErrorIs(t, err, models.ErrDecode)
	assert.Empty(t, store.Embeddings())
}
