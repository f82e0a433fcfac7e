// Package transform provides the registry of named pure functions used to
// normalize extracted field values. The set of transform categories is
// closed; new sources extend the vocabulary with parsing variants rather
// than new categories.
package transform

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTransform is returned when a named transform is not registered.
var ErrUnknownTransform = errors.New("unknown transform")

// Func is a pure transform: one raw extracted token in, one normalized
// token out. Params carry per-field configuration; ref is the run
// wall-clock time used for relative-date resolution.
type Func func(value string, params map[string]string, ref time.Time) (string, error)

// Registry holds named transforms.
type Registry struct {
	byName map[string]Func
}

// NewRegistry creates a registry with all built-in transforms installed.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Func)}
	r.registerBuiltins()
	return r
}

// Register installs a transform under a name, replacing any previous
// registration.
func (r *Registry) Register(name string, fn Func) {
	r.byName[name] = fn
}

// Has reports whether a transform is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Apply runs the named transform against a value.
func (r *Registry) Apply(name, value string, params map[string]string, ref time.Time) (string, error) {
	fn, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTransform, name)
	}
	out, err := fn(value, params, ref)
	if err != nil {
		return "", fmt.Errorf("transform %s: %w", name, err)
	}
	return out, nil
}

// Names returns the registered transform names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

func (r *Registry) registerBuiltins() {
	r.Register("trim", Trim)
	r.Register("lowercase", Lowercase)
	r.Register("uppercase", Uppercase)
	r.Register("slugify", Slugify)
	r.Register("strip_html", StripHTML)
	r.Register("regex", RegexCapture)
	r.Register("resolve_url", ResolveURL)
	r.Register("parse_date", ParseDate)
	r.Register("parse_relative_date", ParseRelativeDate)
	r.Register("time_range_start", TimeRangeStart)
	r.Register("time_range_end", TimeRangeEnd)
}
