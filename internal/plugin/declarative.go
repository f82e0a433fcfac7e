package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/sources"
	"github.com/jonesrussell/gigharvest/internal/transform"
	"github.com/jonesrussell/gigharvest/internal/workflow"
)

// SessionFactory builds the automation session a declarative plugin
// fetches through. Swappable in tests.
type SessionFactory func(opts workflow.SessionOptions, log logger.Interface) workflow.Session

// defaultSessionFactory builds colly-backed HTTP sessions.
func defaultSessionFactory(opts workflow.SessionOptions, log logger.Interface) workflow.Session {
	return workflow.NewHTTPSession(opts, log)
}

// DeclarativePlugin is a plugin compiled from a source configuration. It
// drives the workflow interpreter for fetching and the field mapping for
// normalization.
type DeclarativePlugin struct {
	cfg         *sources.Config
	interpreter *workflow.Interpreter
	newSession  SessionFactory
	logger      logger.Interface
	location    *time.Location
}

// CompileConfig builds a declarative plugin from a validated source
// configuration.
func CompileConfig(
	cfg *sources.Config,
	transforms *transform.Registry,
	log logger.Interface,
) (*DeclarativePlugin, error) {
	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("source %s: invalid timezone %q: %w",
			cfg.Site.Name, cfg.Site.Timezone, err)
	}

	return &DeclarativePlugin{
		cfg:         cfg,
		interpreter: workflow.NewInterpreter(transforms, log.WithSource(cfg.Site.Name)),
		newSession:  defaultSessionFactory,
		logger:      log.WithSource(cfg.Site.Name),
		location:    loc,
	}, nil
}

// SetSessionFactory overrides how fetch sessions are built. Must be
// called before the first Fetch.
func (p *DeclarativePlugin) SetSessionFactory(factory SessionFactory) {
	p.newSession = factory
}

// Meta returns the plugin's metadata.
func (p *DeclarativePlugin) Meta() Metadata {
	return Metadata{
		Name:              p.cfg.Site.Name,
		RequestsPerMinute: p.cfg.RateLimit.RequestsPerMinute,
		ScheduleMinutes:   p.cfg.Site.ScheduleMinutes,
		Schedule:          p.cfg.Site.Schedule,
		TrustScore:        p.cfg.Site.TrustScore,
		Description:       p.cfg.Site.Description,
		Site:              p.cfg.Site.URL,
		ValidationMode:    p.cfg.Validation.Mode,
	}
}

// Fetch runs the source's workflow in a fresh session. The session is
// always released, error or not. Partial extraction results are returned
// alongside the error so callers can decide what a failed tail means.
func (p *DeclarativePlugin) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	sess := p.newSession(workflow.SessionOptions{
		UserAgent:      p.cfg.Browser.UserAgent,
		Headers:        p.cfg.Browser.Headers,
		RequestTimeout: p.cfg.Browser.RequestTimeout,
		AllowedDomains: p.cfg.Browser.AllowedDomains,
	}, p.logger)
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			p.logger.Warn("Failed to close session", "error", closeErr)
		}
	}()

	result, err := p.interpreter.Run(ctx, sess, p.cfg.Workflow)
	if result != nil && result.Failed > 0 {
		p.logger.Warn("Some records failed extraction",
			"failed", result.Failed,
			"extracted", len(result.Records),
		)
	}
	if err != nil {
		records := []domain.RawRecord(nil)
		if result != nil {
			records = result.Records
		}
		return records, fmt.Errorf("workflow failed for %s: %w", p.cfg.Site.Name, err)
	}

	if p.cfg.Debug.DumpRawRecords {
		for i, record := range result.Records {
			p.logger.Debug("Raw record", "index", i, "record", record)
		}
	}

	return result.Records, nil
}

// Normalize converts raw records into canonical gigs via the source's
// field mapping. Pure: no I/O, deterministic ids and hashes.
func (p *DeclarativePlugin) Normalize(raw []domain.RawRecord) ([]domain.Gig, []error) {
	gigs := make([]domain.Gig, 0, len(raw))
	var errs []error

	for i, record := range raw {
		gig, err := p.normalizeRecord(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		gigs = append(gigs, gig)
	}

	return gigs, errs
}

// normalizeRecord maps one raw record onto a Gig.
func (p *DeclarativePlugin) normalizeRecord(record domain.RawRecord) (domain.Gig, error) {
	m := &p.cfg.Mapping

	start, err := p.parseTime(record.String(m.StartTime))
	if err != nil {
		return domain.Gig{}, fmt.Errorf("start time: %w", err)
	}

	gig := domain.Gig{
		Source:         p.cfg.Site.Name,
		SourceID:       record.String(m.SourceID),
		Title:          record.String(m.Title),
		Performers:     record.Strings(m.Performers),
		Tags:           record.Strings(m.Tags),
		StartTime:      start,
		Timezone:       p.cfg.Site.Timezone,
		AgeRestriction: record.String(m.AgeRestriction),
		Status:         domain.ParseGigStatus(record.String(m.Status)),
		TicketURL:      record.String(m.TicketURL),
		InfoURL:        record.String(m.InfoURL),
		ImageURLs:      record.Strings(m.Images),
		Venue: domain.Venue{
			Name:    record.String(m.VenueName),
			Address: record.String(m.VenueAddress),
			City:    record.String(m.VenueCity),
			Country: record.String(m.VenueCountry),
		},
	}

	if raw := record.String(m.EndTime); raw != "" {
		end, endErr := p.parseTime(raw)
		if endErr == nil {
			gig.EndTime = &end
		}
	}

	if raw := record.String(m.Price); raw != "" {
		if price, ok := ParsePrice(raw); ok {
			gig.Price = &price
		}
	}

	gig.Fingerprint()
	return gig, nil
}

// Layouts tried for values that did not come pre-normalized to RFC 3339
// by a date transform.
var normalizeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime parses a mapped time value in the source's timezone.
func (p *DeclarativePlugin) parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range normalizeTimeLayouts {
		parsed, err := time.ParseInLocation(layout, value, p.location)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time value %q", value)
}
