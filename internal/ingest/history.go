package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gigharvest/internal/domain"
)

// defaultHistoryLimit caps Recent queries when no limit is given.
const defaultHistoryLimit = 20

// HistoryRepo appends completed run stats and serves recent history.
type HistoryRepo interface {
	Append(ctx context.Context, stats *domain.RunStats) error
	Recent(ctx context.Context, source string, limit int) ([]domain.RunStats, error)
}

// SQLHistory persists run history via sqlx (Postgres in production).
type SQLHistory struct {
	db *sqlx.DB
}

// NewSQLHistory creates a run-history repository.
func NewSQLHistory(db *sqlx.DB) *SQLHistory {
	return &SQLHistory{db: db}
}

// runRow is the database shape of RunStats.
type runRow struct {
	ID              string    `db:"id"`
	Source          string    `db:"source"`
	RawCount        int       `db:"raw_count"`
	NormalizedCount int       `db:"normalized_count"`
	NewCount        int       `db:"new_count"`
	UpdatedCount    int       `db:"updated_count"`
	UnchangedCount  int       `db:"unchanged_count"`
	ErrorCount      int       `db:"error_count"`
	Errors          string    `db:"errors"`
	StartedAt       time.Time `db:"started_at"`
	DurationMs      int64     `db:"duration_ms"`
	Success         bool      `db:"success"`
}

const appendQuery = `
INSERT INTO run_history (
	id, source, raw_count, normalized_count, new_count, updated_count,
	unchanged_count, error_count, errors, started_at, duration_ms, success
) VALUES (
	:id, :source, :raw_count, :normalized_count, :new_count, :updated_count,
	:unchanged_count, :error_count, :errors, :started_at, :duration_ms, :success
)`

const recentQuery = `
SELECT id, source, raw_count, normalized_count, new_count, updated_count,
	unchanged_count, error_count, errors, started_at, duration_ms, success
FROM run_history
WHERE source = $1
ORDER BY started_at DESC
LIMIT $2`

// Append inserts one completed run. Run history is append-only.
func (h *SQLHistory) Append(ctx context.Context, stats *domain.RunStats) error {
	row := runRow{
		ID:              stats.ID,
		Source:          stats.Source,
		RawCount:        stats.RawCount,
		NormalizedCount: stats.NormalizedCount,
		NewCount:        stats.NewCount,
		UpdatedCount:    stats.UpdatedCount,
		UnchangedCount:  stats.UnchangedCount,
		ErrorCount:      stats.ErrorCount,
		Errors:          strings.Join(stats.Errors, "\n"),
		StartedAt:       stats.StartedAt,
		DurationMs:      stats.Duration.Milliseconds(),
		Success:         stats.Success,
	}

	if _, err := h.db.NamedExecContext(ctx, appendQuery, &row); err != nil {
		return fmt.Errorf("failed to append run history: %w", err)
	}
	return nil
}

// Recent returns the most recent runs for a source, newest first.
func (h *SQLHistory) Recent(ctx context.Context, source string, limit int) ([]domain.RunStats, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var rows []runRow
	if err := h.db.SelectContext(ctx, &rows, recentQuery, source, limit); err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}

	stats := make([]domain.RunStats, 0, len(rows))
	for i := range rows {
		stats = append(stats, rows[i].toStats())
	}
	return stats, nil
}

func (r *runRow) toStats() domain.RunStats {
	var errs []string
	if r.Errors != "" {
		errs = strings.Split(r.Errors, "\n")
	}
	return domain.RunStats{
		ID:              r.ID,
		Source:          r.Source,
		RawCount:        r.RawCount,
		NormalizedCount: r.NormalizedCount,
		NewCount:        r.NewCount,
		UpdatedCount:    r.UpdatedCount,
		UnchangedCount:  r.UnchangedCount,
		ErrorCount:      r.ErrorCount,
		Errors:          errs,
		StartedAt:       r.StartedAt,
		Duration:        time.Duration(r.DurationMs) * time.Millisecond,
		Success:         r.Success,
	}
}
