package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/your-org/facerec/internal/models"
)

// MemoryStore keeps everything in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	people  []models.Person
	faces   []models.FaceEmbedding
	hits    []models.VideoHit
	nextPID int64
	nextFID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Close()                        {}

func (s *MemoryStore) AddPerson(_ context.Context, name *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	p := models.Person{ID: s.nextPID}
	if name != nil {
		n := *name
		p.Name = &n
	}
	s.people = append(s.people, p)
	return p.ID, nil
}

func (s *MemoryStore) PersonName(_ context.Context, id int64) (*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if p.ID == id {
			if p.Name == nil {
				return nil, nil
			}
			n := *p.Name
			return &n, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdatePersonName(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.people {
		if s.people[i].ID == id {
			n := name
			s.people[i].Name = &n
			return nil
		}
	}
	return fmt.Errorf("person %d: %w", id, ErrPersonNotFound)
}

func (s *MemoryStore) ListPeople(context.Context) ([]models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]int, len(s.people))
	for _, f := range s.faces {
		counts[f.PersonID]++
	}
	out := make([]models.Person, len(s.people))
	for i, p := range s.people {
		p.Faces = counts[p.ID]
		out[i] = p
	}
	return out, nil
}

func (s *MemoryStore) AddEmbedding(_ context.Context, personID int64, v models.Vector, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFID++
	s.faces = append(s.faces, models.FaceEmbedding{ID: s.nextFID, PersonID: personID, Vector: v, Source: source})
	return s.nextFID, nil
}

func (s *MemoryStore) LoadEmbeddings(context.Context) ([]models.StoredEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StoredEmbedding, len(s.faces))
	for i, f := range s.faces {
		out[i] = models.StoredEmbedding{PersonID: f.PersonID, Vector: f.Vector}
	}
	return out, nil
}

func (s *MemoryStore) RecordVideoHit(_ context.Context, hit models.VideoHit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, hit)
	return nil
}

// Embeddings returns a copy of every stored embedding row.
func (s *MemoryStore) Embeddings() []models.FaceEmbedding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FaceEmbedding(nil), s.faces...)
}

// VideoHits returns a copy of every recorded hit.
func (s *MemoryStore) VideoHits() []models.VideoHit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.VideoHit(nil), s.hits...)
}

func (s *MemoryStore) Stats(context.Context) (models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.StoreStats{People: len(s.people), Embeddings: len(s.faces), VideoHits: len(s.hits)}, nil
}
