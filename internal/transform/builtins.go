package transform

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"
)

// Errors returned by built-in transforms.
var (
	ErrNoMatch       = errors.New("pattern did not match")
	ErrUnparsedDate  = errors.New("no layout matched date value")
	ErrMissingParam  = errors.New("missing required param")
	ErrNotATimeRange = errors.New("value is not a time range")
)

// Default date layouts tried by parse_date when none are configured.
var defaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006 15:04",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"2 January 2006",
	"Monday, 2 January 2006",
}

// weekdays maps lowercase weekday names for relative-date resolution.
var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// timeRangeSeparators are the dash variants sources use in "HH:MM-HH:MM".
var timeRangeSeparators = []string{"–", "—", "-"}

// clockRe matches a bare HH:MM clock value.
var clockRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// Trim removes surrounding whitespace and collapses inner runs to one space.
func Trim(value string, _ map[string]string, _ time.Time) (string, error) {
	return strings.Join(strings.Fields(value), " "), nil
}

// Lowercase trims and lowercases the value.
func Lowercase(value string, _ map[string]string, _ time.Time) (string, error) {
	return strings.ToLower(strings.TrimSpace(value)), nil
}

// Uppercase trims and uppercases the value.
func Uppercase(value string, _ map[string]string, _ time.Time) (string, error) {
	return strings.ToUpper(strings.TrimSpace(value)), nil
}

// Slugify converts the value into a URL-safe lowercase slug.
func Slugify(value string, _ map[string]string, _ time.Time) (string, error) {
	slug := sanitize.Name(strings.TrimSpace(value))
	slug = strings.ToLower(slug)
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug, nil
}

// StripHTML removes markup from the value, keeping text content.
func StripHTML(value string, _ map[string]string, _ time.Time) (string, error) {
	return strings.TrimSpace(sanitize.HTML(value)), nil
}

// RegexCapture applies the "pattern" param and returns the first capture
// group, or the whole match when the pattern has no groups.
func RegexCapture(value string, params map[string]string, _ time.Time) (string, error) {
	pattern := params["pattern"]
	if pattern == "" {
		return "", fmt.Errorf("%w: pattern", ErrMissingParam)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	match := re.FindStringSubmatch(value)
	if match == nil {
		return "", fmt.Errorf("%w: %q", ErrNoMatch, pattern)
	}
	if len(match) > 1 {
		return match[1], nil
	}
	return match[0], nil
}

// ResolveURL resolves the value against the "base" param, producing an
// absolute URL. An already-absolute value is returned as is.
func ResolveURL(value string, params map[string]string, _ time.Time) (string, error) {
	value = strings.TrimSpace(value)
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", value, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}

	base := params["base"]
	if base == "" {
		return "", fmt.Errorf("%w: base", ErrMissingParam)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}

	return baseURL.ResolveReference(parsed).String(), nil
}

// ParseDate parses the value against the "layouts" param (comma-separated
// Go layouts) or the default layout list, in the "timezone" param location
// (default UTC). The result is RFC 3339.
func ParseDate(value string, params map[string]string, _ time.Time) (string, error) {
	value = strings.TrimSpace(value)

	layouts := defaultDateLayouts
	if l := params["layouts"]; l != "" {
		layouts = strings.Split(l, ",")
	}

	loc, err := resolveLocation(params)
	if err != nil {
		return "", err
	}

	for _, layout := range layouts {
		parsed, parseErr := time.ParseInLocation(strings.TrimSpace(layout), value, loc)
		if parseErr == nil {
			return parsed.Format(time.RFC3339), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnparsedDate, value)
}

// ParseRelativeDate resolves values like "Today", "Tomorrow" or a weekday
// name against the run wall-clock time. A trailing "HH:MM" clock is
// honored ("Tomorrow 20:00"); otherwise the clock is midnight. The result
// is RFC 3339.
func ParseRelativeDate(value string, params map[string]string, ref time.Time) (string, error) {
	loc, err := resolveLocation(params)
	if err != nil {
		return "", err
	}
	ref = ref.In(loc)

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(value)))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty value", ErrUnparsedDate)
	}

	day, rest, err := resolveRelativeDay(fields, ref)
	if err != nil {
		return "", err
	}

	hour, minute := 0, 0
	if len(rest) > 0 {
		clock := rest[len(rest)-1]
		if clockRe.MatchString(clock) {
			parsed, _ := time.Parse("15:04", clock)
			hour, minute = parsed.Hour(), parsed.Minute()
		}
	}

	resolved := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return resolved.Format(time.RFC3339), nil
}

// resolveRelativeDay maps the leading token(s) to a calendar day.
func resolveRelativeDay(fields []string, ref time.Time) (time.Time, []string, error) {
	head := fields[0]
	switch head {
	case "today", "tonight":
		return ref, fields[1:], nil
	case "tomorrow":
		return ref.AddDate(0, 0, 1), fields[1:], nil
	}

	if wd, ok := weekdays[head]; ok {
		// Next occurrence of the weekday, today counting as zero days out.
		days := (int(wd) - int(ref.Weekday()) + 7) % 7
		return ref.AddDate(0, 0, days), fields[1:], nil
	}

	return time.Time{}, nil, fmt.Errorf("%w: %q", ErrUnparsedDate, head)
}

// TimeRangeStart returns the start clock of an "HH:MM-HH:MM" range.
// A bare "HH:MM" value is returned unchanged.
func TimeRangeStart(value string, _ map[string]string, _ time.Time) (string, error) {
	start, _, err := splitTimeRange(value)
	return start, err
}

// TimeRangeEnd returns the end clock of an "HH:MM-HH:MM" range, or empty
// for a bare "HH:MM" value.
func TimeRangeEnd(value string, _ map[string]string, _ time.Time) (string, error) {
	_, end, err := splitTimeRange(value)
	return end, err
}

// splitTimeRange splits a clock range on en dash, em dash or hyphen.
func splitTimeRange(value string) (start, end string, err error) {
	value = strings.TrimSpace(value)
	if clockRe.MatchString(value) {
		return value, "", nil
	}

	for _, sep := range timeRangeSeparators {
		before, after, found := strings.Cut(value, sep)
		if !found {
			continue
		}
		start = strings.TrimSpace(before)
		end = strings.TrimSpace(after)
		if clockRe.MatchString(start) && clockRe.MatchString(end) {
			return start, end, nil
		}
	}

	return "", "", fmt.Errorf("%w: %q", ErrNotATimeRange, value)
}

// resolveLocation loads the "timezone" param location, defaulting to UTC.
func resolveLocation(params map[string]string) (*time.Location, error) {
	tz := params["timezone"]
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}
