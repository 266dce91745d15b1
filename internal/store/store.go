package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seanblong/testgen/pkg/models"
)

// Kinds of recorded generations.
const (
	KindSummaries = "summaries"
	KindCode      = "code"
	KindTest      = "test"
)

// DefaultRecentLimit is used when Recent is asked for a non-positive limit.
const DefaultRecentLimit = 20

// HistoryStore records generations so they can be listed later.
type HistoryStore interface {
	Migrate(ctx context.Context) error
	Record(ctx context.Context, g models.Generation) (models.Generation, error)
	Recent(ctx context.Context, limit int) ([]models.Generation, error)
}

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

// Open returns a Postgres store when url is set and a Nop store otherwise.
// The returned close func is always safe to call.
func Open(ctx context.Context, url string) (HistoryStore, func(), error) {
	if strings.TrimSpace(url) == "" {
		return Nop{}, func() {}, nil
	}
	s, err := New(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS generations (
  id          UUID PRIMARY KEY,
  kind        TEXT NOT NULL,
  provider    TEXT NOT NULL,
  model       TEXT NOT NULL DEFAULT '',
  framework   TEXT NOT NULL DEFAULT '',
  input       TEXT NOT NULL DEFAULT '',
  output      TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS generations_created_at_idx
  ON generations (created_at DESC);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// Record inserts g, assigning an id and timestamp when they are unset.
func (s *Store) Record(ctx context.Context, g models.Generation) (models.Generation, error) {
	g = stamp(g)

	const q = `
		INSERT INTO generations (id, kind, provider, model, framework, input, output, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := s.pool.Exec(ctx, q,
		g.ID, g.Kind, g.Provider, g.Model, g.Framework, g.Input, g.Output, g.CreatedAt,
	)
	if err != nil {
		return models.Generation{}, err
	}
	return g, nil
}

// Recent returns the newest generations first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, kind, provider, model, framework, input, output, created_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Generation{}
	for rows.Next() {
		var g models.Generation
		if err := rows.Scan(&g.ID, &g.Kind, &g.Provider, &g.Model, &g.Framework, &g.Input, &g.Output, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Nop keeps no history.
type Nop struct{}

func (Nop) Migrate(context.Context) error { return nil }

func (Nop) Record(_ context.Context, g models.Generation) (models.Generation, error) {
	return stamp(g), nil
}

func (Nop) Recent(context.Context, int) ([]models.Generation, error) {
	return []models.Generation{}, nil
}

func stamp(g models.Generation) models.Generation {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return g
}
