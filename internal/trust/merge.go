package trust

import (
	"sort"
	"strings"
	"time"

	"github.com/jonesrussell/gigharvest/internal/domain"
)

// matchWindow is the start-time proximity within which two reports are
// considered the same event for grouping.
const matchWindow = time.Hour

// Merge reconciles duplicate reports of the same event. Candidates are
// sorted descending by source trust, ties broken by earliest firstSeenAt;
// the merged record is seeded from the top candidate. Remaining
// candidates union list-valued fields with de-duplication, and fill
// scalar/optional gaps; a scalar is overwritten only when the candidate's
// trust is at least the merged record's source trust. Lower-trust
// candidates never overwrite values a higher-trust candidate supplied.
// The most recent updatedAt across candidates is retained. A single
// candidate is returned unchanged.
func Merge(candidates []domain.Gig, table *Table) domain.Gig {
	if len(candidates) == 0 {
		return domain.Gig{}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	sorted := make([]domain.Gig, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := table.Score(sorted[i].Source), table.Score(sorted[j].Source)
		if ti != tj {
			return ti > tj
		}
		return sorted[i].FirstSeenAt.Before(sorted[j].FirstSeenAt)
	})

	merged := sorted[0]
	mergedTrust := table.Score(merged.Source)

	for _, candidate := range sorted[1:] {
		candidateTrust := table.Score(candidate.Source)

		merged.Performers = unionStrings(merged.Performers, candidate.Performers)
		merged.Tags = unionStrings(merged.Tags, candidate.Tags)
		merged.ImageURLs = unionStrings(merged.ImageURLs, candidate.ImageURLs)

		overwrite := candidateTrust >= mergedTrust

		if candidate.Price != nil && (overwrite || merged.Price == nil) {
			price := *candidate.Price
			merged.Price = &price
		}
		if candidate.TicketURL != "" && (overwrite || merged.TicketURL == "") {
			merged.TicketURL = candidate.TicketURL
		}
		if candidate.InfoURL != "" && (overwrite || merged.InfoURL == "") {
			merged.InfoURL = candidate.InfoURL
		}
		if candidate.EndTime != nil && (overwrite || merged.EndTime == nil) {
			end := *candidate.EndTime
			merged.EndTime = &end
		}
		if candidate.Timezone != "" && (overwrite || merged.Timezone == "") {
			merged.Timezone = candidate.Timezone
		}
		if candidate.AgeRestriction != "" && (overwrite || merged.AgeRestriction == "") {
			merged.AgeRestriction = candidate.AgeRestriction
		}

		if candidate.UpdatedAt.After(merged.UpdatedAt) {
			merged.UpdatedAt = candidate.UpdatedAt
		}
	}

	return merged
}

// MatchKey derives the identity key used to group duplicate reports of
// the same event across sources: normalized venue plus normalized title
// plus start time truncated to the proximity window.
func MatchKey(g *domain.Gig) string {
	return strings.Join([]string{
		normalize(g.Venue.Name),
		normalize(g.Title),
		g.StartTime.UTC().Truncate(matchWindow).Format(time.RFC3339),
	}, "|")
}

// GroupCandidates buckets gigs by match key, preserving input order
// within each bucket. Buckets with two or more members are merge
// candidates.
func GroupCandidates(gigs []domain.Gig) map[string][]domain.Gig {
	groups := make(map[string][]domain.Gig)
	for _, gig := range gigs {
		key := MatchKey(&gig)
		groups[key] = append(groups[key], gig)
	}
	return groups
}

// MergeAll runs the reconciliation pass over a cross-source record set,
// merging every duplicate group and passing singletons through.
func MergeAll(gigs []domain.Gig, table *Table) []domain.Gig {
	groups := GroupCandidates(gigs)

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := make([]domain.Gig, 0, len(groups))
	for _, key := range keys {
		merged = append(merged, Merge(groups[key], table))
	}
	return merged
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// unionStrings appends values not already present, preserving first-seen
// order and de-duplicating case-insensitively.
func unionStrings(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}

	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}

	out := base
	for _, v := range extra {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
