// Package domain provides domain models used across the application.
package domain

import (
	"strings"
	"time"
)

// GigStatus represents the lifecycle status of a gig listing.
type GigStatus string

const (
	// StatusScheduled means the event is expected to take place.
	StatusScheduled GigStatus = "scheduled"
	// StatusCancelled means the event was called off. Cancelled gigs are
	// retained rather than deleted so history survives.
	StatusCancelled GigStatus = "cancelled"
	// StatusPostponed means the event was moved to an unknown later date.
	StatusPostponed GigStatus = "postponed"
)

// ParseGigStatus coerces an upstream status string into a GigStatus,
// defaulting to scheduled for anything unrecognized.
func ParseGigStatus(s string) GigStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancelled", "canceled":
		return StatusCancelled
	case "postponed", "moved", "rescheduled":
		return StatusPostponed
	default:
		return StatusScheduled
	}
}

// Venue describes where a gig takes place.
type Venue struct {
	// Name of the venue
	Name string `json:"name" mapstructure:"name"`
	// Street address, if known
	Address string `json:"address,omitempty" mapstructure:"address"`
	// City of the venue
	City string `json:"city,omitempty" mapstructure:"city"`
	// Country of the venue
	Country string `json:"country,omitempty" mapstructure:"country"`
	// Latitude in decimal degrees
	Latitude float64 `json:"latitude,omitempty" mapstructure:"latitude"`
	// Longitude in decimal degrees
	Longitude float64 `json:"longitude,omitempty" mapstructure:"longitude"`
}

// PriceRange describes the advertised ticket price span.
type PriceRange struct {
	// Min is the lowest advertised price
	Min float64 `json:"min" mapstructure:"min"`
	// Max is the highest advertised price; equal to Min for a single price
	Max float64 `json:"max" mapstructure:"max"`
	// Currency is the ISO 4217 currency code
	Currency string `json:"currency,omitempty" mapstructure:"currency"`
}

// Gig is the canonical normalized representation of one live-event listing.
type Gig struct {
	// ID is the stable identifier derived from semantic fields only
	ID string `json:"id" mapstructure:"id"`
	// Source is the name of the source this gig was harvested from
	Source string `json:"source" mapstructure:"source"`
	// SourceID is the source-local identifier when the source exposes one
	SourceID string `json:"source_id,omitempty" mapstructure:"source_id"`

	// Title of the event
	Title string `json:"title" mapstructure:"title"`
	// Performers lists the acts on the bill
	Performers []string `json:"performers,omitempty" mapstructure:"performers"`
	// Tags or genres related to the event
	Tags []string `json:"tags,omitempty" mapstructure:"tags"`

	// StartTime is when the event begins
	StartTime time.Time `json:"start_time" mapstructure:"start_time"`
	// EndTime is when the event ends, if advertised
	EndTime *time.Time `json:"end_time,omitempty" mapstructure:"end_time"`
	// Timezone is the IANA timezone name the times were parsed in
	Timezone string `json:"timezone,omitempty" mapstructure:"timezone"`

	// Venue where the event takes place
	Venue Venue `json:"venue" mapstructure:"venue"`

	// Price is the advertised price range, if any
	Price *PriceRange `json:"price,omitempty" mapstructure:"price"`
	// AgeRestriction is the advertised age limit (e.g. "18+")
	AgeRestriction string `json:"age_restriction,omitempty" mapstructure:"age_restriction"`

	// Status of the event
	Status GigStatus `json:"status" mapstructure:"status"`

	// TicketURL links to the ticket vendor
	TicketURL string `json:"ticket_url,omitempty" mapstructure:"ticket_url"`
	// InfoURL links to the event detail page
	InfoURL string `json:"info_url,omitempty" mapstructure:"info_url"`
	// ImageURLs lists promotional images
	ImageURLs []string `json:"image_urls,omitempty" mapstructure:"image_urls"`

	// ContentHash fingerprints the semantic fields for change detection
	ContentHash string `json:"content_hash" mapstructure:"content_hash"`

	// Change-tracking bookkeeping, stamped by the change detector.
	// Never part of the stable id or content hash.
	IsNew       bool      `json:"is_new" mapstructure:"is_new"`
	IsUpdated   bool      `json:"is_updated" mapstructure:"is_updated"`
	FirstSeenAt time.Time `json:"first_seen_at" mapstructure:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" mapstructure:"last_seen_at"`
	UpdatedAt   time.Time `json:"updated_at" mapstructure:"updated_at"`
}

// PerformersString returns performers as a comma-separated string.
func (g *Gig) PerformersString() string {
	if len(g.Performers) == 0 {
		return ""
	}
	return strings.Join(g.Performers, ", ")
}

// HasPrice reports whether a price range was advertised.
func (g *Gig) HasPrice() bool {
	return g.Price != nil
}

// RawRecord is one structured record extracted from a source before
// normalization. Values are strings or string slices depending on the
// field's cardinality.
type RawRecord map[string]any

// String returns the value for key as a string, or empty if absent or
// not a string.
func (r RawRecord) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Strings returns the value for key as a string slice. A scalar string
// value is returned as a one-element slice.
func (r RawRecord) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
