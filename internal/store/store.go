// Package store persists completed analyses to PostgreSQL so past results
// can be listed and re-opened. It is write-behind relative to the upload
// flow: a failed save never blocks or alters what the user sees.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finsight/internal/analysis"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// ErrNotFound is returned by Get for an unknown analysis id.
var ErrNotFound = errors.New("analysis not found")

// maxListLimit caps List results.
const maxListLimit = 100

// Record is one stored analysis.
type Record struct {
	ID              uuid.UUID         `json:"id"`
	Filename        string            `json:"filename"`
	UploadedAt      time.Time         `json:"upload_date"`
	DetectedColumns map[string]string `json:"detected_columns"`
	KPIs            analysis.KPISet   `json:"kpis"`
	DataPreview     []map[string]any  `json:"data_preview"`
}

// Store reads and writes analysis records.
type Store struct {
	db DBTX
}

// New creates a Store backed by db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the analyses table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analyses (
			id               UUID PRIMARY KEY,
			filename         TEXT NOT NULL,
			uploaded_at      TIMESTAMPTZ NOT NULL,
			detected_columns JSONB NOT NULL DEFAULT '{}'::jsonb,
			kpis             JSONB NOT NULL DEFAULT '{}'::jsonb,
			data_preview     JSONB NOT NULL DEFAULT '[]'::jsonb
		)`)
	if err != nil {
		return fmt.Errorf("create analyses table: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_analyses_uploaded_at
		ON analyses (uploaded_at DESC)`)
	if err != nil {
		return fmt.Errorf("create analyses index: %w", err)
	}
	return nil
}

// Save inserts one analysis record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO analyses (id, filename, uploaded_at, detected_columns, kpis, data_preview)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Filename, rec.UploadedAt, rec.DetectedColumns, rec.KPIs, rec.DataPreview,
	)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent analyses, newest first. limit is clamped to
// [1, 100].
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, filename, uploaded_at, detected_columns, kpis, data_preview
		FROM analyses
		ORDER BY uploaded_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.UploadedAt,
			&rec.DetectedColumns, &rec.KPIs, &rec.DataPreview); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get returns one analysis by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	err := s.db.QueryRow(ctx, `
		SELECT id, filename, uploaded_at, detected_columns, kpis, data_preview
		FROM analyses
		WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Filename, &rec.UploadedAt,
		&rec.DetectedColumns, &rec.KPIs, &rec.DataPreview)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return rec, nil
}
