// Package history keeps a ledger of cleaning runs in PostgreSQL.
//
// Only run metadata is stored: file name, sizes, row counts, outcome and
// timing. Row contents never leave the request that produced them.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultLimit is used by Recent when the caller passes no limit.
const DefaultLimit = 50

// MaxLimit caps Recent regardless of the caller.
const MaxLimit = 500

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Run is one stored run, as listed by GET /api/history.
type Run struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	InputRows   int       `json:"inputRows"`
	OutputRows  int       `json:"outputRows"`
	Duplicates  int       `json:"duplicates"`
	Outcome     string    `json:"outcome"`
	ErrorCode   string    `json:"errorCode,omitempty"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Lister lists recent runs.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Run, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS clean_runs (
    id           UUID PRIMARY KEY,
    file_name    TEXT        NOT NULL,
    content_type TEXT,
    size_bytes   BIGINT      NOT NULL DEFAULT 0,
    input_rows   INTEGER     NOT NULL DEFAULT 0,
    output_rows  INTEGER     NOT NULL DEFAULT 0,
    duplicates   INTEGER     NOT NULL DEFAULT 0,
    outcome      TEXT        NOT NULL,
    error_code   TEXT,
    duration_ms  BIGINT      NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS clean_runs_created_at_idx ON clean_runs (created_at DESC);
`

const insertRunSQL = `
INSERT INTO clean_runs (
    id, file_name, content_type, size_bytes, input_rows, output_rows,
    duplicates, outcome, error_code, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const recentRunsSQL = `
SELECT id, file_name, content_type, size_bytes, input_rows, output_rows,
       duplicates, outcome, error_code, duration_ms, created_at
FROM clean_runs
ORDER BY created_at DESC
LIMIT $1`

// Store writes and reads runs through a DBTX.
type Store struct {
	db DBTX
}

// NewStore creates a Store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the clean_runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create clean_runs: %w", err)
	}
	return nil
}

// RecordRun inserts one run. It implements core.RunRecorder.
func (s *Store) RecordRun(ctx context.Context, run core.RunSummary) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", run.ID, err)
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Exec(ctx, insertRunSQL,
		pgtype.UUID{Bytes: id, Valid: true},
		run.FileName,
		optionalText(run.ContentType),
		run.SizeBytes,
		run.InputRows,
		run.OutputRows,
		run.Duplicates,
		string(run.Outcome),
		optionalText(run.ErrorCode),
		run.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert clean run: %w", err)
	}
	return nil
}

// Recent returns the newest runs first. limit is clamped to 1..MaxLimit,
// with DefaultLimit for zero or negative values.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	limit = clampLimit(limit)

	rows, err := s.db.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query clean runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan clean runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.CollectableRow) (Run, error) {
	var (
		id          pgtype.UUID
		fileName    string
		contentType pgtype.Text
		sizeBytes   int64
		inputRows   int32
		outputRows  int32
		duplicates  int32
		outcome     string
		errorCode   pgtype.Text
		durationMS  int64
		createdAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &fileName, &contentType, &sizeBytes, &inputRows, &outputRows,
		&duplicates, &outcome, &errorCode, &durationMS, &createdAt,
	)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		FileName:   fileName,
		SizeBytes:  sizeBytes,
		InputRows:  int(inputRows),
		OutputRows: int(outputRows),
		Duplicates: int(duplicates),
		Outcome:    outcome,
		DurationMS: durationMS,
		CreatedAt:  createdAt.Time,
	}
	if id.Valid {
		run.ID = uuid.UUID(id.Bytes).String()
	}
	if contentType.Valid {
		run.ContentType = contentType.String
	}
	if errorCode.Valid {
		run.ErrorCode = errorCode.String
	}
	return run, nil
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Nop discards runs and lists none. It is used when no database is configured.
type Nop struct{}

// RecordRun implements core.RunRecorder.
func (Nop) RecordRun(context.Context, core.RunSummary) error { return nil }

// Recent implements Lister.
func (Nop) Recent(context.Context, int) ([]Run, error) { return []Run{}, nil }

var (
	_ core.RunRecorder = (*Store)(nil)
	_ core.RunRecorder = Nop{}
	_ Lister           = (*Store)(nil)
	_ Lister           = Nop{}
)
