package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

const stableIDLength = 16

// StableID derives the deterministic identifier for a gig. It is a
// function of the source plus the source-local id when one exists,
// otherwise of the semantic identity fields (title, venue name, start
// time). Bookkeeping timestamps never participate, so identical
// upstream content always yields the same id.
func StableID(g *Gig) string {
	var key string
	if g.SourceID != "" {
		key = g.Source + "|" + g.SourceID
	} else {
		key = strings.Join([]string{
			g.Source,
			canonicalString(g.Title),
			canonicalString(g.Venue.Name),
			g.StartTime.UTC().Format(time.RFC3339),
		}, "|")
	}

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:stableIDLength]
}

// ContentHash fingerprints the semantic fields of a gig: title,
// performers, tags, timing, venue, price, status and URLs. Identifiers,
// images and change-tracking timestamps are excluded, so re-fetching
// identical content always produces an identical hash.
func ContentHash(g *Gig) string {
	parts := []string{
		canonicalString(g.Title),
		strings.Join(sortedCopy(g.Performers), ","),
		strings.Join(sortedCopy(g.Tags), ","),
		g.StartTime.UTC().Format(time.RFC3339),
		formatOptionalTime(g.EndTime),
		g.Timezone,
		canonicalString(g.Venue.Name),
		canonicalString(g.Venue.Address),
		canonicalString(g.Venue.City),
		canonicalString(g.Venue.Country),
		formatPrice(g.Price),
		string(g.Status),
		g.TicketURL,
		g.InfoURL,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Fingerprint stamps both the stable id and the content hash on a gig.
func (g *Gig) Fingerprint() {
	g.ID = StableID(g)
	g.ContentHash = ContentHash(g)
}

// canonicalString lowercases and collapses whitespace so hash identity
// survives cosmetic upstream formatting changes.
func canonicalString(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = canonicalString(v)
	}
	sort.Strings(out)
	return out
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatPrice(p *PriceRange) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%.2f-%.2f-%s", p.Min, p.Max, p.Currency)
}
