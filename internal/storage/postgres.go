package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the identity tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS people (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS faces (
			id BIGSERIAL PRIMARY KEY,
			person_id BIGINT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
			encoding BYTEA NOT NULL,
			source TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS faces_person_id_idx ON faces (person_id);
		CREATE TABLE IF NOT EXISTS video_hits (
			id BIGSERIAL PRIMARY KEY,
			media_id BIGINT NOT NULL,
			person_id BIGINT NOT NULL,
			frame_index INT NOT NULL,
			timestamp_s DOUBLE PRECISION NOT NULL,
			"left" INT NOT NULL,
			top INT NOT NULL,
			"right" INT NOT NULL,
			bottom INT NOT NULL,
			distance DOUBLE PRECISION NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS video_hits_media_id_idx ON video_hits (media_id);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// --- People ---

func (s *PostgresStore) AddPerson(ctx context.Context, name *string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO people (name, created_at, updated_at) VALUES ($1, NOW(), NOW()) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add person: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) PersonName(ctx context.Context, id int64) (*string, error) {
	var name *string
	err := s.pool.QueryRow(ctx, `SELECT name FROM people WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person name: %w", err)
	}
	return name, nil
}

func (s *PostgresStore) UpdatePersonName(ctx context.Context, id int64, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE people SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("update person name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %d: %w", id, ErrPersonNotFound)
	}
	return nil
}

func (s *PostgresStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, COUNT(f.id)
		FROM people p
		LEFT JOIN faces f ON f.person_id = p.id
		GROUP BY p.id, p.name
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var people []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Faces); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// --- Face embeddings ---

func (s *PostgresStore) AddEmbedding(ctx context.Context, personID int64, v models.Vector, source string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO faces (person_id, encoding, source, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`,
		personID, v.Bytes(), source,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add face embedding: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) LoadEmbeddings(ctx context.Context) ([]models.StoredEmbedding, error) {
	rows, err := s.pool.Query(ctx, `SELECT person_id, encoding FROM faces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.StoredEmbedding
	for rows.Next() {
		var (
			personID int64
			blob     []byte
		)
		if err := rows.Scan(&personID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e, err := decodeEmbedding(personID, blob)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	return out, nil
}

// --- Video hits ---

func (s *PostgresStore) RecordVideoHit(ctx context.Context, hit models.VideoHit) error {
	b := hit.Match.BBox
	_, err := s.pool.Exec(ctx,
		`INSERT INTO video_hits (media_id, person_id, frame_index, timestamp_s, "left", top, "right", bottom, distance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
		hit.MediaID, hit.Match.PersonID, hit.FrameIndex, hit.TimestampS,
		b.Left, b.Top, b.Right, b.Bottom, finiteOrNil(hit.Match.Distance))
	if err != nil {
		return fmt.Errorf("record video hit: %w: %w", models.ErrOptionalPersistence, err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (models.StoreStats, error) {
	var st models.StoreStats
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM people),
		       (SELECT COUNT(*) FROM faces),
		       (SELECT COUNT(*) FROM video_hits)`,
	).Scan(&st.People, &st.Embeddings, &st.VideoHits)
	if err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}
