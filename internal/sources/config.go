// Package sources provides loading and validation of declarative source
// configurations.
package sources

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/gigharvest/internal/workflow"
)

// Validation modes.
const (
	// ModeLenient repairs invalid records where possible and drops the rest.
	ModeLenient = "lenient"
	// ModeStrict drops invalid records without repair.
	ModeStrict = "strict"
)

// Defaults applied to missing optional fields.
const (
	// DefaultRequestsPerMinute is the request budget when none is set.
	DefaultRequestsPerMinute = 30
	// DefaultScheduleMinutes is the ingestion cadence when none is set.
	DefaultScheduleMinutes = 360
	// DefaultTrustScore is the trust score for sources that declare none.
	DefaultTrustScore = 50
	// DefaultTimezone is used when the site declares none.
	DefaultTimezone = "UTC"
	// DefaultRequestTimeout bounds each page load.
	DefaultRequestTimeout = 30 * time.Second
)

// Validation errors.
var (
	ErrMissingName     = errors.New("site name is required")
	ErrMissingURL      = errors.New("site url is required")
	ErrMissingMapping  = errors.New("mapping requires at least title and start_time")
	ErrInvalidTrust    = errors.New("trust score must be between 0 and 100")
	ErrInvalidMode     = errors.New("validation mode must be strict or lenient")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// Config is one source's declarative definition. Immutable per run;
// reloadable between runs.
type Config struct {
	// Site holds source metadata
	Site SiteConfig `yaml:"site" mapstructure:"site"`
	// Browser holds session options
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	// RateLimit holds the per-source request budget
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	// Workflow is the ordered extraction script
	Workflow []workflow.Action `yaml:"workflow" mapstructure:"workflow"`
	// Mapping maps canonical gig fields to raw record keys
	Mapping Mapping `yaml:"mapping" mapstructure:"mapping"`
	// Validation configures record validation behavior
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	// Debug flags
	Debug DebugConfig `yaml:"debug" mapstructure:"debug"`
}

// SiteConfig holds source metadata.
type SiteConfig struct {
	// Name is the unique source identifier
	Name string `yaml:"name" mapstructure:"name"`
	// URL is the site's base URL
	URL string `yaml:"url" mapstructure:"url"`
	// Description of the source
	Description string `yaml:"description,omitempty" mapstructure:"description"`
	// Timezone the site publishes times in
	Timezone string `yaml:"timezone,omitempty" mapstructure:"timezone"`
	// TrustScore ranks the source's reliability (0-100)
	TrustScore int `yaml:"trust_score,omitempty" mapstructure:"trust_score"`
	// ScheduleMinutes is the default ingestion cadence
	ScheduleMinutes int `yaml:"schedule_minutes,omitempty" mapstructure:"schedule_minutes"`
	// Schedule is an optional 5-field cron expression overriding
	// ScheduleMinutes
	Schedule string `yaml:"schedule,omitempty" mapstructure:"schedule"`
}

// BrowserConfig holds session options.
type BrowserConfig struct {
	// UserAgent sent with every request
	UserAgent string `yaml:"user_agent,omitempty" mapstructure:"user_agent"`
	// Headers added to every request
	Headers map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
	// RequestTimeout bounds each page load
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" mapstructure:"request_timeout"`
	// AllowedDomains restricts navigation when non-empty
	AllowedDomains []string `yaml:"allowed_domains,omitempty" mapstructure:"allowed_domains"`
}

// RateLimitConfig holds the per-source request budget.
type RateLimitConfig struct {
	// RequestsPerMinute is the replenishing token budget
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty" mapstructure:"requests_per_minute"`
}

// Mapping maps canonical gig fields to keys of the raw records the
// workflow extracts. Empty entries leave the gig field unset.
type Mapping struct {
	SourceID       string `yaml:"source_id,omitempty" mapstructure:"source_id"`
	Title          string `yaml:"title" mapstructure:"title"`
	Performers     string `yaml:"performers,omitempty" mapstructure:"performers"`
	Tags           string `yaml:"tags,omitempty" mapstructure:"tags"`
	StartTime      string `yaml:"start_time" mapstructure:"start_time"`
	EndTime        string `yaml:"end_time,omitempty" mapstructure:"end_time"`
	VenueName      string `yaml:"venue_name,omitempty" mapstructure:"venue_name"`
	VenueAddress   string `yaml:"venue_address,omitempty" mapstructure:"venue_address"`
	VenueCity      string `yaml:"venue_city,omitempty" mapstructure:"venue_city"`
	VenueCountry   string `yaml:"venue_country,omitempty" mapstructure:"venue_country"`
	Price          string `yaml:"price,omitempty" mapstructure:"price"`
	AgeRestriction string `yaml:"age_restriction,omitempty" mapstructure:"age_restriction"`
	Status         string `yaml:"status,omitempty" mapstructure:"status"`
	TicketURL      string `yaml:"ticket_url,omitempty" mapstructure:"ticket_url"`
	InfoURL        string `yaml:"info_url,omitempty" mapstructure:"info_url"`
	Images         string `yaml:"images,omitempty" mapstructure:"images"`
}

// ValidationConfig configures record validation behavior.
type ValidationConfig struct {
	// Mode is strict or lenient
	Mode string `yaml:"mode,omitempty" mapstructure:"mode"`
}

// DebugConfig holds per-source debug flags.
type DebugConfig struct {
	// DumpRawRecords logs every raw record at debug level
	DumpRawRecords bool `yaml:"dump_raw_records,omitempty" mapstructure:"dump_raw_records"`
}

// ApplyDefaults fills missing optional fields with documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Site.Timezone == "" {
		c.Site.Timezone = DefaultTimezone
	}
	if c.Site.TrustScore == 0 {
		c.Site.TrustScore = DefaultTrustScore
	}
	if c.Site.ScheduleMinutes == 0 {
		c.Site.ScheduleMinutes = DefaultScheduleMinutes
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Browser.RequestTimeout == 0 {
		c.Browser.RequestTimeout = DefaultRequestTimeout
	}
	if c.Validation.Mode == "" {
		c.Validation.Mode = ModeLenient
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.Site.Name == "" {
		return ErrMissingName
	}
	if c.Site.URL == "" {
		return ErrMissingURL
	}
	if c.Site.TrustScore < 0 || c.Site.TrustScore > 100 {
		return ErrInvalidTrust
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, c.Site.Timezone)
	}
	if c.Validation.Mode != ModeLenient && c.Validation.Mode != ModeStrict {
		return fmt.Errorf("%w: got %q", ErrInvalidMode, c.Validation.Mode)
	}
	if c.Mapping.Title == "" || c.Mapping.StartTime == "" {
		return ErrMissingMapping
	}
	if err := workflow.Validate(c.Workflow); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return nil
}
