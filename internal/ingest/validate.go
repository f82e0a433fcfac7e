// Package ingest orchestrates one source's end-to-end ingestion run:
// fetch, normalize, validate, change-detect, persist.
package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/sources"
)

// fallbackVenueName is assigned in lenient mode when a source never
// names the venue (single-venue sites often omit it).
const fallbackVenueName = "unknown venue"

// Validator performs structural validation of normalized records with
// best-effort auto-repair in lenient mode.
type Validator struct {
	mode   string
	logger logger.Interface
}

// NewValidator creates a validator. Mode is sources.ModeStrict or
// sources.ModeLenient; anything else falls back to lenient.
func NewValidator(mode string, log logger.Interface) *Validator {
	if mode != sources.ModeStrict {
		mode = sources.ModeLenient
	}
	return &Validator{
		mode:   mode,
		logger: log.WithComponent("validator"),
	}
}

// ValidateAll checks every gig, repairing what it can in lenient mode
// and dropping the rest. A single invalid record never aborts the batch.
// Returned messages describe each drop.
func (v *Validator) ValidateAll(gigs []domain.Gig) (valid []domain.Gig, dropped []string) {
	valid = make([]domain.Gig, 0, len(gigs))

	for i := range gigs {
		gig := gigs[i]
		if reason := v.validate(&gig); reason != "" {
			dropped = append(dropped, reason)
			v.logger.Warn("Dropping invalid record",
				"source", gig.Source,
				"title", gig.Title,
				"reason", reason,
			)
			continue
		}
		valid = append(valid, gig)
	}
	return valid, dropped
}

// validate checks one gig in place. Returns a drop reason, or empty when
// the record is valid (possibly after repair). Repairs touch semantic
// fields, so the fingerprint is recomputed afterwards.
func (v *Validator) validate(gig *domain.Gig) string {
	repaired := false

	if v.mode == sources.ModeLenient {
		repaired = v.repair(gig)
	}

	switch {
	case strings.TrimSpace(gig.Title) == "":
		return "missing title"
	case gig.StartTime.IsZero():
		return "missing start time"
	case gig.Source == "":
		return "missing source"
	case gig.Venue.Name == "":
		return "missing venue name"
	case gig.Price != nil && gig.Price.Min < 0:
		return fmt.Sprintf("negative price %.2f", gig.Price.Min)
	}

	if repaired {
		gig.Fingerprint()
	}
	return ""
}

// repair applies best-effort fixes: trimming, venue defaulting, price
// ordering, and dropping invalid array entries. Reports whether anything
// changed.
func (v *Validator) repair(gig *domain.Gig) bool {
	changed := false

	if trimmed := strings.TrimSpace(gig.Title); trimmed != gig.Title {
		gig.Title = trimmed
		changed = true
	}
	if trimmed := strings.TrimSpace(gig.Venue.Name); trimmed != gig.Venue.Name {
		gig.Venue.Name = trimmed
		changed = true
	}
	if gig.Venue.Name == "" {
		gig.Venue.Name = fallbackVenueName
		changed = true
	}

	if gig.Price != nil && gig.Price.Max < gig.Price.Min {
		gig.Price.Min, gig.Price.Max = gig.Price.Max, gig.Price.Min
		changed = true
	}

	if cleaned, dirty := cleanStrings(gig.Performers); dirty {
		gig.Performers = cleaned
		changed = true
	}
	if cleaned, dirty := cleanStrings(gig.Tags); dirty {
		gig.Tags = cleaned
		changed = true
	}
	if cleaned, dirty := cleanURLs(gig.ImageURLs); dirty {
		gig.ImageURLs = cleaned
		changed = true
	}

	return changed
}

// cleanStrings trims entries and drops empties.
func cleanStrings(values []string) ([]string, bool) {
	dirty := false
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			dirty = true
			continue
		}
		if trimmed != value {
			dirty = true
		}
		out = append(out, trimmed)
	}
	if !dirty {
		return values, false
	}
	return out, true
}

// cleanURLs drops entries that do not parse as absolute URLs.
func cleanURLs(values []string) ([]string, bool) {
	dirty := false
	out := make([]string, 0, len(values))
	for _, value := range values {
		parsed, err := url.Parse(strings.TrimSpace(value))
		if err != nil || !parsed.IsAbs() {
			dirty = true
			continue
		}
		out = append(out, value)
	}
	if !dirty {
		return values, false
	}
	return out, true
}
