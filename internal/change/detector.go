// Package change classifies normalized records against the prior
// snapshot, keyed by stable id and fingerprinted by content hash.
package change

import (
	"context"
	"time"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
)

// Classification of one record against the prior snapshot.
type Classification string

const (
	// New means the stable id was absent from the prior snapshot.
	New Classification = "new"
	// Updated means the id was present with a differing content hash.
	Updated Classification = "updated"
	// Unchanged means the id was present with an equal content hash.
	Unchanged Classification = "unchanged"
)

// Result summarizes one classification pass.
type Result struct {
	// Records are the classified records with change fields stamped
	Records []domain.Gig
	// NewCount, UpdatedCount and UnchangedCount partition Records
	NewCount       int
	UpdatedCount   int
	UnchangedCount int
}

// Detector classifies records via content hashing. Classification is a
// pure function of (current, previous); the wall clock only stamps
// seen-at fields, never influences the outcome, so re-running on the
// same pair yields identical classifications.
type Detector struct {
	logger logger.Interface
	now    func() time.Time
}

// NewDetector creates a change detector.
func NewDetector(log logger.Interface) *Detector {
	return &Detector{
		logger: log.WithComponent("change-detector"),
		now:    time.Now,
	}
}

// SetClock overrides the wall clock, mainly for tests.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Classify evaluates each current record against the prior snapshot:
// absent id means New, differing hash means Updated, equal hash means
// Unchanged. Every record gets lastSeenAt stamped; New records get
// firstSeenAt; Updated and Unchanged preserve the prior firstSeenAt.
func (d *Detector) Classify(current, previous []domain.Gig) *Result {
	prior := make(map[string]*domain.Gig, len(previous))
	for i := range previous {
		prior[previous[i].ID] = &previous[i]
	}

	now := d.now()
	result := &Result{Records: make([]domain.Gig, 0, len(current))}

	for _, gig := range current {
		gig.LastSeenAt = now

		prev, existed := prior[gig.ID]
		switch {
		case !existed:
			gig.IsNew = true
			gig.IsUpdated = false
			gig.FirstSeenAt = now
			gig.UpdatedAt = now
			result.NewCount++

		case prev.ContentHash != gig.ContentHash:
			gig.IsNew = false
			gig.IsUpdated = true
			gig.FirstSeenAt = prev.FirstSeenAt
			gig.UpdatedAt = now
			result.UpdatedCount++

		default:
			gig.IsNew = false
			gig.IsUpdated = false
			gig.FirstSeenAt = prev.FirstSeenAt
			gig.UpdatedAt = prev.UpdatedAt
			result.UnchangedCount++
		}

		result.Records = append(result.Records, gig)
	}

	d.logger.Debug("Classification complete",
		"new", result.NewCount,
		"updated", result.UpdatedCount,
		"unchanged", result.UnchangedCount,
	)
	return result
}

// SnapshotStore reads and writes the prior snapshot per source. The
// snapshot is read and written only by the run for its own source.
type SnapshotStore interface {
	// Read returns the prior snapshot, or an empty slice when none exists.
	Read(ctx context.Context, source string) ([]domain.Gig, error)
	// Write replaces the snapshot for a source.
	Write(ctx context.Context, source string, gigs []domain.Gig) error
}
