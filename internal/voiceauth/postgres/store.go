// Package postgres stores voice profiles in PostgreSQL with the pgvector
// extension, so installations that out-grow the in-memory store keep their
// enrollments across restarts and can query similarity server-side later on.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/ethanwacker/batcomputer/internal/voiceauth"
	"github.com/ethanwacker/batcomputer/internal/voiceauth/extract"
)

// Compile-time assertion that Store satisfies voiceauth.Store.
var _ voiceauth.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [voiceauth.Store].
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at connString, registers pgvector types on
// every pooled connection, and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS voice_profiles (
			name        text PRIMARY KEY,
			voice_print bytea NOT NULL,
			spectral    vector(%d) NOT NULL,
			pitch       vector(%d) NOT NULL,
			created_at  timestamptz NOT NULL,
			last_used   timestamptz
		)`, extract.SpectralBands, extract.PitchFrames),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// Put implements [voiceauth.Store.Put] with an upsert keyed on name.
func (s *Store) Put(ctx context.Context, p voiceauth.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO voice_profiles (name, voice_print, spectral, pitch, created_at, last_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			voice_print = EXCLUDED.voice_print,
			spectral    = EXCLUDED.spectral,
			pitch       = EXCLUDED.pitch,
			created_at  = EXCLUDED.created_at,
			last_used   = EXCLUDED.last_used`,
		p.Name, p.VoicePrint, toVector(p.SpectralFeatures), toVector(p.PitchProfile),
		p.CreatedAt, nullableTime(p.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile %q: %w", p.Name, err)
	}
	return nil
}

// List implements [voiceauth.Store.List].
func (s *Store) List(ctx context.Context) ([]voiceauth.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, voice_print, spectral, pitch, created_at, last_used
		FROM voice_profiles
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list profiles: %w", err)
	}
	defer rows.Close()

	var out []voiceauth.Profile
	for rows.Next() {
		var (
			p               voiceauth.Profile
			spectral, pitch pgvector.Vector
			lastUsed        *time.Time
		)
		if err := rows.Scan(&p.Name, &p.VoicePrint, &spectral, &pitch, &p.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("postgres: scan profile: %w", err)
		}
		p.SpectralFeatures = toFloat64s(spectral)
		p.PitchProfile = toFloat64s(pitch)
		if lastUsed != nil {
			p.LastUsed = *lastUsed
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate profiles: %w", err)
	}
	return out, nil
}

// Touch implements [voiceauth.Store.Touch].
func (s *Store) Touch(ctx context.Context, name string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE voice_profiles SET last_used = $2 WHERE name = $1`, name, at)
	if err != nil {
		return fmt.Errorf("postgres: touch profile %q: %w", name, err)
	}
	return nil
}

func toVector(v []float64) pgvector.Vector {
	f := make([]float32, len(v))
	for i, x := range v {
		f[i] = float32(x)
	}
	return pgvector.NewVector(f)
}

func toFloat64s(v pgvector.Vector) []float64 {
	s := v.Slice()
	out := make([]float64, len(s))
	for i, x := range s {
		out[i] = float64(x)
	}
	return out
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
