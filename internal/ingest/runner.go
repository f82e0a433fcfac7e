package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gigharvest/internal/change"
	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/ratelimit"
	"github.com/jonesrussell/gigharvest/internal/storage"
	"github.com/jonesrussell/gigharvest/internal/trust"
)

// Runner orchestrates one source end-to-end: rate-limited fetch,
// normalize, validate, merge, change-detect, persist. Those stages
// happen in that fixed order for a run's data.
type Runner struct {
	registry  *plugin.Registry
	limiter   *ratelimit.Limiter
	detector  *change.Detector
	snapshots change.SnapshotStore
	sink      storage.Sink
	history   HistoryRepo
	trust     *trust.Table
	logger    logger.Interface
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithHistory attaches a run-history repository. Optional; appends are
// non-fatal either way.
func WithHistory(history HistoryRepo) RunnerOption {
	return func(r *Runner) { r.history = history }
}

// WithTrustTable enables trust-weighted merging of same-listing
// duplicates before change detection.
func WithTrustTable(table *trust.Table) RunnerOption {
	return func(r *Runner) { r.trust = table }
}

// NewRunner creates an ingestion runner.
func NewRunner(
	registry *plugin.Registry,
	limiter *ratelimit.Limiter,
	detector *change.Detector,
	snapshots change.SnapshotStore,
	sink storage.Sink,
	log logger.Interface,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		registry:  registry,
		limiter:   limiter,
		detector:  detector,
		snapshots: snapshots,
		sink:      sink,
		logger:    log.WithComponent("ingest"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one ingestion run for a source. The returned stats are
// complete even on failure; the error reports what made the run fail.
// Persistence-sink failures are logged but do not fail the run.
func (r *Runner) Run(ctx context.Context, source string) (*domain.RunStats, error) {
	stats := &domain.RunStats{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.Now(),
	}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		r.appendHistory(ctx, stats)
	}()

	log := r.logger.WithSource(source)

	p, err := r.registry.Get(source)
	if err != nil {
		stats.RecordError(err.Error())
		return stats, err
	}
	meta := p.Meta()

	raw, err := r.fetch(ctx, p, &meta)
	stats.RawCount = len(raw)
	if err != nil {
		stats.RecordError(err.Error())
		return stats, fmt.Errorf("fetch failed for %s: %w", source, err)
	}
	log.Info("Fetched raw records", "count", len(raw))

	gigs, normErrs := p.Normalize(raw)
	for _, normErr := range normErrs {
		stats.RecordError(normErr.Error())
	}

	validator := NewValidator(meta.ValidationMode, log)
	valid, dropped := validator.ValidateAll(gigs)
	for _, reason := range dropped {
		stats.RecordError(reason)
	}
	stats.NormalizedCount = len(valid)

	if r.trust != nil {
		merged := trust.MergeAll(valid, r.trust)
		if len(merged) < len(valid) {
			log.Debug("Merged duplicate listings",
				"before", len(valid),
				"after", len(merged),
			)
		}
		valid = merged
	}

	previous, err := r.snapshots.Read(ctx, source)
	if err != nil {
		stats.RecordError(err.Error())
		return stats, fmt.Errorf("snapshot read failed for %s: %w", source, err)
	}

	result := r.detector.Classify(valid, previous)
	stats.NewCount = result.NewCount
	stats.UpdatedCount = result.UpdatedCount
	stats.UnchangedCount = result.UnchangedCount

	if err := r.snapshots.Write(ctx, source, result.Records); err != nil {
		stats.RecordError(err.Error())
		return stats, fmt.Errorf("snapshot write failed for %s: %w", source, err)
	}

	r.persist(ctx, log, stats, result.Records)

	stats.Success = true
	log.Info("Run complete",
		"raw", stats.RawCount,
		"normalized", stats.NormalizedCount,
		"new", stats.NewCount,
		"updated", stats.UpdatedCount,
		"unchanged", stats.UnchangedCount,
		"errors", stats.ErrorCount,
	)
	return stats, nil
}

// fetch runs the plugin's fetch under the source's rate budget.
func (r *Runner) fetch(ctx context.Context, p plugin.Plugin, meta *plugin.Metadata) ([]domain.RawRecord, error) {
	var raw []domain.RawRecord
	err := r.limiter.Schedule(ctx, meta.Name, meta.RequestsPerMinute, func(ctx context.Context) error {
		fetched, fetchErr := p.Fetch(ctx)
		raw = fetched
		return fetchErr
	})
	return raw, err
}

// persist upserts classified records into the sink. Sink failures are
// non-fatal: the snapshot already holds the data for the next run.
func (r *Runner) persist(ctx context.Context, log logger.Interface, stats *domain.RunStats, records []domain.Gig) {
	inserted, updated, err := r.sink.Upsert(ctx, records)
	if err != nil {
		stats.RecordError(fmt.Sprintf("persistence failed: %v", err))
		log.Error("Persistence sink failed, snapshot retains data",
			"error", err,
		)
		return
	}
	log.Debug("Persisted records",
		"inserted", inserted,
		"updated", updated,
	)
}

// appendHistory records the completed run. Failures only log.
func (r *Runner) appendHistory(ctx context.Context, stats *domain.RunStats) {
	if r.history == nil {
		return
	}
	if err := r.history.Append(ctx, stats); err != nil {
		r.logger.Warn("Failed to append run history",
			"source", stats.Source,
			"error", err,
		)
	}
}
