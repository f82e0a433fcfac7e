package transform_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/transform"
)

// refTime is a Friday.
var refTime = time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)

func TestTrimCollapsesWhitespace(t *testing.T) {
	out, err := transform.Trim("  The   Cure \n live ", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "The Cure live", out)
}

func TestSlugify(t *testing.T) {
	out, err := transform.Slugify("  Blue Note ", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "blue-note", out)
}

func TestStripHTML(t *testing.T) {
	out, err := transform.StripHTML("<b>AC/DC</b> live", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "AC/DC live", out)
}

func TestRegexCapture(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		pattern string
		want    string
		wantErr error
	}{
		{
			name:    "first capture group",
			value:   "Tickets $25 at the door",
			pattern: `\$(\d+)`,
			want:    "25",
		},
		{
			name:    "whole match without groups",
			value:   "Doors 19:00",
			pattern: `\d\d:\d\d`,
			want:    "19:00",
		},
		{
			name:    "no match",
			value:   "Free entry",
			pattern: `\$(\d+)`,
			wantErr: transform.ErrNoMatch,
		},
		{
			name:    "missing pattern param",
			value:   "anything",
			pattern: "",
			wantErr: transform.ErrMissingParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]string{}
			if tt.pattern != "" {
				params["pattern"] = tt.pattern
			}
			out, err := transform.RegexCapture(tt.value, params, refTime)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestResolveURL(t *testing.T) {
	params := map[string]string{"base": "https://example.com/events"}

	out, err := transform.ResolveURL("/gigs/42", params, refTime)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/gigs/42", out)

	out, err = transform.ResolveURL("https://other.example/x", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", out)

	_, err = transform.ResolveURL("/gigs/42", nil, refTime)
	require.ErrorIs(t, err, transform.ErrMissingParam)
}

func TestParseDate(t *testing.T) {
	out, err := transform.ParseDate("2026-03-14", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14T00:00:00Z", out)

	out, err = transform.ParseDate("14.03.2026 20:00", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14T20:00:00Z", out)

	_, err = transform.ParseDate("next week sometime", nil, refTime)
	require.ErrorIs(t, err, transform.ErrUnparsedDate)
}

func TestParseDateCustomLayoutAndTimezone(t *testing.T) {
	params := map[string]string{
		"layouts":  "02 Jan 2006 15:04",
		"timezone": "America/Toronto",
	}
	out, err := transform.ParseDate("14 Mar 2026 20:00", params, refTime)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14T20:00:00-04:00", out)
}

func TestParseRelativeDate(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"Today", "2026-03-13T00:00:00Z"},
		{"Tonight 22:00", "2026-03-13T22:00:00Z"},
		{"Tomorrow 20:00", "2026-03-14T20:00:00Z"},
		{"Saturday 21:30", "2026-03-14T21:30:00Z"},
		{"Friday", "2026-03-13T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			out, err := transform.ParseRelativeDate(tt.value, nil, refTime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := transform.ParseRelativeDate("someday", nil, refTime)
	require.ErrorIs(t, err, transform.ErrUnparsedDate)
}

func TestTimeRange(t *testing.T) {
	start, err := transform.TimeRangeStart("19:00–23:00", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "19:00", start)

	end, err := transform.TimeRangeEnd("19:00 - 23:00", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "23:00", end)

	start, err = transform.TimeRangeStart("20:00", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "20:00", start)

	end, err = transform.TimeRangeEnd("20:00", nil, refTime)
	require.NoError(t, err)
	assert.Empty(t, end)

	_, err = transform.TimeRangeEnd("doors open late", nil, refTime)
	require.ErrorIs(t, err, transform.ErrNotATimeRange)
}

func TestRegistryApply(t *testing.T) {
	reg := transform.NewRegistry()

	out, err := reg.Apply("lowercase", "LOUD", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "loud", out)

	_, err = reg.Apply("nope", "x", nil, refTime)
	require.ErrorIs(t, err, transform.ErrUnknownTransform)

	reg.Register("shout", func(v string, _ map[string]string, _ time.Time) (string, error) {
		return v + "!", nil
	})
	out, err = reg.Apply("shout", "hey", nil, refTime)
	require.NoError(t, err)
	assert.Equal(t, "hey!", out)
	assert.True(t, reg.Has("shout"))
}
