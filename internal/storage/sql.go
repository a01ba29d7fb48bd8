package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
)

// dialect holds what differs between the database/sql backends. Both
// drivers use "?" placeholders.
type dialect struct {
	name   string
	quote  func(ident string) string
	now    string
	schema []string
}

var mysqlDialect = dialect{
	name:  "mysql",
	quote: func(ident string) string { return "`" + ident + "`" },
	now:   "NOW()",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS people (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NULL,
			created_at TIMESTAMP NULL,
			updated_at TIMESTAMP NULL
		)`,
		`CREATE TABLE IF NOT EXISTS faces (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			person_id BIGINT UNSIGNED NOT NULL,
			encoding BLOB NOT NULL,
			source VARCHAR(1024) NULL,
			created_at TIMESTAMP NULL,
			updated_at TIMESTAMP NULL,
			INDEX faces_person_id_idx (person_id)
		)`,
		"CREATE TABLE IF NOT EXISTS video_hits (" +
			"id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY," +
			"media_id BIGINT UNSIGNED NOT NULL," +
			"person_id BIGINT UNSIGNED NOT NULL," +
			"frame_index INT NOT NULL," +
			"timestamp_s DOUBLE NOT NULL," +
			"`left` INT NOT NULL, top INT NOT NULL, `right` INT NOT NULL, bottom INT NOT NULL," +
			"distance DOUBLE NULL," +
			"created_at TIMESTAMP NULL, updated_at TIMESTAMP NULL," +
			"INDEX video_hits_media_id_idx (media_id))",
	},
}

var sqliteDialect = dialect{
	name:  "sqlite",
	quote: func(ident string) string { return `"` + ident + `"` },
	now:   "datetime('now')",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS people (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NULL,
			created_at DATETIME NULL,
			updated_at DATETIME NULL
		)`,
		`CREATE TABLE IF NOT EXISTS faces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			person_id INTEGER NOT NULL REFERENCES people(id) ON DELETE CASCADE,
			encoding BLOB NOT NULL,
			source TEXT NULL,
			created_at DATETIME NULL,
			updated_at DATETIME NULL
		)`,
		`CREATE INDEX IF NOT EXISTS faces_person_id_idx ON faces (person_id)`,
		`CREATE TABLE IF NOT EXISTS video_hits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			media_id INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			frame_index INTEGER NOT NULL,
			timestamp_s REAL NOT NULL,
			"left" INTEGER NOT NULL,
			top INTEGER NOT NULL,
			"right" INTEGER NOT NULL,
			bottom INTEGER NOT NULL,
			distance REAL NULL,
			created_at DATETIME NULL,
			updated_at DATETIME NULL
		)`,
		`CREATE INDEX IF NOT EXISTS video_hits_media_id_idx ON video_hits (media_id)`,
	},
}

// SQLStore is the database/sql implementation shared by MySQL and SQLite.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func NewMySQLStore(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("mysql DSN is required")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	return newSQLStore(ctx, db, mysqlDialect)
}

// NewSQLiteStore opens the database file at cfg.Path. ":memory:" is accepted
// and pins the pool to one connection so every query sees the same database.
func NewSQLiteStore(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	path := cfg.Path
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, sqliteDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) Close() {
	_ = s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) AddPerson(ctx context.Context, name *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO people (name, created_at, updated_at) VALUES (?, "+s.d.now+", "+s.d.now+")", name)
	if err != nil {
		return 0, fmt.Errorf("add person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add person: %w", err)
	}
	return id, nil
}

func (s *SQLStore) PersonName(ctx context.Context, id int64) (*string, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT name FROM people WHERE id = ?", id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person name: %w", err)
	}
	if !name.Valid {
		return nil, nil
	}
	return &name.String, nil
}

func (s *SQLStore) UpdatePersonName(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE people SET name = ?, updated_at = "+s.d.now+" WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("update person name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update person name: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", id, ErrPersonNotFound)
	}
	return nil
}

func (s *SQLStore) ListPeople(ctx context.Context) ([]models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var (
			p    models.Person
			name sql.NullString
		)
		if err := rows.Scan(&p.ID, &name, &p.Faces); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if name.Valid {
			p.Name = &name.String
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (s *SQLStore) AddEmbedding(ctx context.Context, personID int64, v models.Vector, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO faces (person_id, encoding, source, created_at, updated_at) VALUES (?, ?, ?, "+s.d.now+", "+s.d.now+")",
		personID, v.Bytes(), source)
	if err != nil {
		return 0, fmt.Errorf("add face embedding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add face embedding: %w", err)
	}
	return id, nil
}

func (s *SQLStore) LoadEmbeddings(ctx context.Context) ([]models.StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT person_id, encoding FROM faces ORDER BY id")
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

func (s *SQLStore) RecordVideoHit(ctx context.Context, hit models.VideoHit) error {
	b := hit.Match.BBox
	q := fmt.Sprintf(
		"INSERT INTO video_hits (media_id, person_id, frame_index, timestamp_s, %s, top, %s, bottom, distance, created_at, updated_at) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, %s, %s)",
		s.d.quote("left"), s.d.quote("right"), s.d.now, s.d.now)
	_, err := s.db.ExecContext(ctx, q,
		hit.MediaID, hit.Match.PersonID, hit.FrameIndex, hit.TimestampS,
		b.Left, b.Top, b.Right, b.Bottom, finiteOrNil(hit.Match.Distance))
	if err != nil {
		return fmt.Errorf("record video hit: %w: %w", models.ErrOptionalPersistence, err)
	}
	return nil
}

func (s *SQLStore) Stats(ctx context.Context) (models.StoreStats, error) {
	var st models.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM people),
		       (SELECT COUNT(*) FROM faces),
		       (SELECT COUNT(*) FROM video_hits)`,
	).Scan(&st.People, &st.Embeddings, &st.VideoHits)
	if err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

// finiteOrNil maps NaN and infinities to SQL NULL.
func finiteOrNil(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
