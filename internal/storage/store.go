package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
)

// ErrPersonNotFound is returned by UpdatePersonName for an unknown id.
var ErrPersonNotFound = errors.New("person not found")

// IdentityStore persists people, their face embeddings and optional video
// hits. The tables belong to the owning application; the worker only
// appends to them, except for UpdatePersonName used by operators.
type IdentityStore interface {
	AddPerson(ctx context.Context, name *string) (int64, error)
	PersonName(ctx context.Context, id int64) (*string, error)
	AddEmbedding(ctx context.Context, personID int64, v models.Vector, source string) (int64, error)
	// LoadEmbeddings returns every stored embedding ordered by id.
	LoadEmbeddings(ctx context.Context) ([]models.StoredEmbedding, error)
	RecordVideoHit(ctx context.Context, hit models.VideoHit) error

	UpdatePersonName(ctx context.Context, id int64, name string) error
	ListPeople(ctx context.Context) ([]models.Person, error)
	Stats(ctx context.Context) (models.StoreStats, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Open connects the backend selected by cfg.Driver and, when AutoMigrate is
// set, creates missing tables.
func Open(ctx context.Context, cfg config.DatabaseConfig) (IdentityStore, error) {
	var (
		s   IdentityStore
		err error
	)
	switch cfg.Driver {
	case "postgres":
		s, err = NewPostgresStore(ctx, cfg)
	case "mysql":
		s, err = NewMySQLStore(ctx, cfg)
	case "sqlite":
		s, err = NewSQLiteStore(ctx, cfg)
	case "memory":
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Driver, err)
		}
	}
	return s, nil
}

func decodeEmbedding(personID int64, blob []byte) (models.StoredEmbedding, error) {
	v, err := models.DecodeVector(blob)
	if err != nil {
		return models.StoredEmbedding{}, fmt.Errorf("person %d: %w", personID, err)
	}
	return models.StoredEmbedding{PersonID: personID, Vector: v}, nil
}
