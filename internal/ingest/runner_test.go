package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/change"
	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/ingest"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/ratelimit"
	"github.com/jonesrussell/gigharvest/internal/sources"
	"github.com/jonesrussell/gigharvest/internal/trust"
)

// stubPlugin is a canned-data source plugin.
type stubPlugin struct {
	name     string
	raw      []domain.RawRecord
	fetchErr error
}

func (s *stubPlugin) Meta() plugin.Metadata {
	return plugin.Metadata{
		Name:              s.name,
		RequestsPerMinute: 100,
		ScheduleMinutes:   60,
		ValidationMode:    sources.ModeLenient,
	}
}

func (s *stubPlugin) Fetch(context.Context) ([]domain.RawRecord, error) {
	return s.raw, s.fetchErr
}

func (s *stubPlugin) Normalize(raw []domain.RawRecord) ([]domain.Gig, []error) {
	var gigs []domain.Gig
	var errs []error
	for _, record := range raw {
		title := record.String("title")
		if title == "" {
			errs = append(errs, errors.New("missing title"))
			continue
		}
		g := domain.Gig{
			Source:    s.name,
			Title:     title,
			StartTime: time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC),
			Venue:     domain.Venue{Name: record.String("venue")},
			TicketURL: record.String("ticket_url"),
			Status:    domain.StatusScheduled,
		}
		g.Fingerprint()
		gigs = append(gigs, g)
	}
	return gigs, errs
}

// recordingSink captures upserted batches.
type recordingSink struct {
	batches [][]domain.Gig
	fail    error
}

func (s *recordingSink) Upsert(_ context.Context, gigs []domain.Gig) (int, int, error) {
	if s.fail != nil {
		return 0, 0, s.fail
	}
	s.batches = append(s.batches, gigs)
	inserted := 0
	updated := 0
	for _, g := range gigs {
		switch {
		case g.IsNew:
			inserted++
		case g.IsUpdated:
			updated++
		}
	}
	return inserted, updated, nil
}

type runnerFixture struct {
	runner    *ingest.Runner
	plugin    *stubPlugin
	sink      *recordingSink
	snapshots *change.MemorySnapshotStore
}

func newRunnerFixture(t *testing.T, p *stubPlugin) *runnerFixture {
	t.Helper()
	log := logger.NewNoOp()

	registry := plugin.NewRegistry(nil, log)
	require.NoError(t, registry.Load(nil, p))

	sink := &recordingSink{}
	snapshots := change.NewMemorySnapshotStore()

	runner := ingest.NewRunner(
		registry,
		ratelimit.New(log, ratelimit.WithInterval(10*time.Millisecond)),
		change.NewDetector(log),
		snapshots,
		sink,
		log,
		ingest.WithTrustTable(trust.NewTable(nil)),
	)
	return &runnerFixture{runner: runner, plugin: p, sink: sink, snapshots: snapshots}
}

func TestRunFirstPassAllNew(t *testing.T) {
	p := &stubPlugin{name: "massey-hall", raw: []domain.RawRecord{
		{"title": "The Cure", "venue": "Massey Hall"},
		{"title": "Bonobo", "venue": "Massey Hall"},
		{"venue": "Massey Hall"}, // unmappable, missing title
	}}
	f := newRunnerFixture(t, p)

	stats, err := f.runner.Run(context.Background(), "massey-hall")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.RawCount)
	assert.Equal(t, 2, stats.NormalizedCount)
	assert.Equal(t, 2, stats.NewCount)
	assert.Zero(t, stats.UpdatedCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.True(t, stats.Success)
	assert.NotEmpty(t, stats.ID)
	require.Len(t, f.sink.batches, 1)
}

func TestRunSecondPassUnchanged(t *testing.T) {
	p := &stubPlugin{name: "massey-hall", raw: []domain.RawRecord{
		{"title": "The Cure", "venue": "Massey Hall"},
	}}
	f := newRunnerFixture(t, p)
	ctx := context.Background()

	_, err := f.runner.Run(ctx, "massey-hall")
	require.NoError(t, err)

	stats, err := f.runner.Run(ctx, "massey-hall")
	require.NoError(t, err)
	assert.Zero(t, stats.NewCount)
	assert.Equal(t, 1, stats.UnchangedCount)
}

func TestRunDetectsUpdates(t *testing.T) {
	p := &stubPlugin{name: "massey-hall", raw: []domain.RawRecord{
		{"title": "The Cure", "venue": "Massey Hall"},
	}}
	f := newRunnerFixture(t, p)
	ctx := context.Background()

	_, err := f.runner.Run(ctx, "massey-hall")
	require.NoError(t, err)

	p.raw = []domain.RawRecord{
		{"title": "The Cure", "venue": "Massey Hall", "ticket_url": "https://tickets.example/1"},
	}
	stats, err := f.runner.Run(ctx, "massey-hall")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UpdatedCount)
	assert.Zero(t, stats.NewCount)
}

func TestRunFetchFailureReportsStats(t *testing.T) {
	p := &stubPlugin{name: "massey-hall", fetchErr: errors.New("site down")}
	f := newRunnerFixture(t, p)

	stats, err := f.runner.Run(context.Background(), "massey-hall")
	require.Error(t, err)
	assert.False(t, stats.Success)
	assert.NotZero(t, stats.ErrorCount)
	assert.Empty(t, f.sink.batches)
}

func TestRunUnknownSource(t *testing.T) {
	f := newRunnerFixture(t, &stubPlugin{name: "known"})

	_, err := f.runner.Run(context.Background(), "unknown")
	require.ErrorIs(t, err, plugin.ErrPluginNotFound)
}

func TestRunSinkFailureIsNonFatal(t *testing.T) {
	p := &stubPlugin{name: "massey-hall", raw: []domain.RawRecord{
		{"title": "The Cure", "venue": "Massey Hall"},
	}}
	f := newRunnerFixture(t, p)
	f.sink.fail = errors.New("index unavailable")

	stats, err := f.runner.Run(context.Background(), "massey-hall")
	require.NoError(t, err)
	assert.True(t, stats.Success)
	assert.NotZero(t, stats.ErrorCount)

	// The snapshot still advanced despite the sink failure.
	snap, readErr := f.snapshots.Read(context.Background(), "massey-hall")
	require.NoError(t, readErr)
	assert.Len(t, snap, 1)
}
