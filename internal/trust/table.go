// Package trust ranks sources by reliability and reconciles duplicate
// gig reports by trust-weighted field merging.
package trust

import (
	"sort"

	"github.com/gobwas/glob"
)

// DefaultScore is assigned to sources with no explicit or pattern score.
const DefaultScore = 50

// patternScore scores sources matching a glob pattern.
type patternScore struct {
	pattern  string
	compiled glob.Glob
	score    int
}

// Table maps source names to trust scores (0-100), with pattern-based
// fallback scoring for unregistered sources. Read-only at merge time.
type Table struct {
	scores       map[string]int
	patterns     []patternScore
	defaultScore int
}

// NewTable creates a trust table from explicit per-source scores.
func NewTable(scores map[string]int) *Table {
	copied := make(map[string]int, len(scores))
	for name, score := range scores {
		copied[name] = clamp(score)
	}
	return &Table{
		scores:       copied,
		defaultScore: DefaultScore,
	}
}

// AddPattern registers a fallback score for sources matching a glob
// pattern (e.g. "*-festival" or "venue-*"). Patterns are consulted in
// registration order; the first match wins. Invalid patterns are ignored.
func (t *Table) AddPattern(pattern string, score int) {
	compiled, err := glob.Compile(pattern)
	if err != nil {
		return
	}
	t.patterns = append(t.patterns, patternScore{
		pattern:  pattern,
		compiled: compiled,
		score:    clamp(score),
	})
}

// SetDefault overrides the score for sources nothing else matches.
func (t *Table) SetDefault(score int) {
	t.defaultScore = clamp(score)
}

// Score returns the trust score for a source: explicit entry first, then
// first matching pattern, then the default.
func (t *Table) Score(source string) int {
	if score, ok := t.scores[source]; ok {
		return score
	}
	for _, p := range t.patterns {
		if p.compiled.Match(source) {
			return p.score
		}
	}
	return t.defaultScore
}

// Sources returns the explicitly scored source names, sorted.
func (t *Table) Sources() []string {
	names := make([]string, 0, len(t.scores))
	for name := range t.scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
