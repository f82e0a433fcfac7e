// Package plugin defines the uniform source plugin contract and the
// registry that loads declarative and native plugins into one table.
package plugin

import (
	"context"

	"github.com/jonesrussell/gigharvest/internal/domain"
)

// Metadata describes a plugin to the scheduler and rate limiter.
type Metadata struct {
	// Name is the unique source identifier
	Name string `json:"name"`
	// RequestsPerMinute is the source's request budget
	RequestsPerMinute int `json:"requests_per_minute"`
	// ScheduleMinutes is the default ingestion cadence
	ScheduleMinutes int `json:"schedule_minutes"`
	// Schedule is an optional 5-field cron expression overriding
	// ScheduleMinutes
	Schedule string `json:"schedule,omitempty"`
	// TrustScore ranks the source's reliability (0-100)
	TrustScore int `json:"trust_score"`
	// Description of the source
	Description string `json:"description,omitempty"`
	// Site is the source's base URL
	Site string `json:"site,omitempty"`
	// ValidationMode is strict or lenient; empty means lenient
	ValidationMode string `json:"validation_mode,omitempty"`
}

// Plugin is the two-operation contract every source implements. Fetch
// owns acquiring and releasing its own session, including on error;
// Normalize is pure and performs no I/O.
type Plugin interface {
	// Meta returns the plugin's metadata.
	Meta() Metadata
	// Fetch harvests raw records from the source.
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
	// Normalize converts raw records into canonical gigs. Records that
	// cannot be normalized are reported in the returned error slice and
	// excluded from the result; one bad record never fails the batch.
	Normalize(raw []domain.RawRecord) ([]domain.Gig, []error)
}

// Cleaner is implemented by plugins that hold resources beyond a single
// fetch. The registry calls Cleanup on reload.
type Cleaner interface {
	Cleanup() error
}
