package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/sources"
	"github.com/jonesrussell/gigharvest/internal/transform"
	"github.com/jonesrussell/gigharvest/internal/workflow"
)

// fakeNative is a minimal native plugin for registry tests.
type fakeNative struct {
	name      string
	cleanedUp bool
}

func (f *fakeNative) Meta() plugin.Metadata {
	return plugin.Metadata{Name: f.name, RequestsPerMinute: 10, ScheduleMinutes: 60}
}

func (f *fakeNative) Fetch(context.Context) ([]domain.RawRecord, error) {
	return []domain.RawRecord{{"title": "x"}}, nil
}

func (f *fakeNative) Normalize([]domain.RawRecord) ([]domain.Gig, []error) {
	return nil, nil
}

func (f *fakeNative) Cleanup() error {
	f.cleanedUp = true
	return nil
}

func declarativeConfig(name string) *sources.Config {
	cfg := &sources.Config{
		Site: sources.SiteConfig{Name: name, URL: "https://example.com"},
		Workflow: []workflow.Action{
			{Type: workflow.ActionNavigate, URL: "https://example.com/events"},
			{
				Type:      workflow.ActionExtract,
				Container: "div.event",
				Fields: workflow.FieldMap{
					"title": {Selector: "h2", Required: true},
					"start": {Selector: "time"},
				},
			},
		},
		Mapping: sources.Mapping{Title: "title", StartTime: "start"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func newRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	return plugin.NewRegistry(transform.NewRegistry(), logger.NewNoOp())
}

func TestLoadAndGet(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Load(
		[]*sources.Config{declarativeConfig("massey-hall")},
		&fakeNative{name: "native-feed"},
	))

	p, err := r.Get("massey-hall")
	require.NoError(t, err)
	assert.Equal(t, "massey-hall", p.Meta().Name)

	p, err = r.Get("native-feed")
	require.NoError(t, err)
	assert.Equal(t, "native-feed", p.Meta().Name)

	_, err = r.Get("unknown")
	require.ErrorIs(t, err, plugin.ErrPluginNotFound)

	assert.Equal(t, []string{"massey-hall", "native-feed"}, r.Names())
}

func TestLoadDeclarativeWinsCollision(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Load(
		[]*sources.Config{declarativeConfig("massey-hall")},
		&fakeNative{name: "massey-hall"},
	))

	p, err := r.Get("massey-hall")
	require.NoError(t, err)
	_, isDeclarative := p.(*plugin.DeclarativePlugin)
	assert.True(t, isDeclarative)
	assert.Len(t, r.Names(), 1)
}

func TestReloadIsIdempotent(t *testing.T) {
	r := newRegistry(t)
	configs := []*sources.Config{declarativeConfig("a"), declarativeConfig("b")}

	require.NoError(t, r.Load(configs))
	first := r.Names()

	require.NoError(t, r.Reload(configs))
	assert.Equal(t, first, r.Names())
}

func TestReloadCleansUpDisplacedPlugins(t *testing.T) {
	r := newRegistry(t)
	native := &fakeNative{name: "native-feed"}
	require.NoError(t, r.Load(nil, native))

	require.NoError(t, r.Reload([]*sources.Config{declarativeConfig("a")}))
	assert.True(t, native.cleanedUp)

	_, err := r.Get("native-feed")
	require.ErrorIs(t, err, plugin.ErrPluginNotFound)
}

func TestReloadKeepsRetainedNativeAlive(t *testing.T) {
	r := newRegistry(t)
	native := &fakeNative{name: "native-feed"}
	require.NoError(t, r.Load(nil, native))

	// Reloading the same inputs must not release a plugin that stays
	// registered.
	require.NoError(t, r.Reload(nil, native))
	assert.False(t, native.cleanedUp)

	p, err := r.Get("native-feed")
	require.NoError(t, err)
	assert.Same(t, native, p)

	// Once actually displaced, the native is released.
	require.NoError(t, r.Reload(nil))
	assert.True(t, native.cleanedUp)
}

func TestMetasSorted(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Load([]*sources.Config{
		declarativeConfig("zebra"),
		declarativeConfig("alpha"),
	}))

	metas := r.Metas()
	require.Len(t, metas, 2)
	assert.Equal(t, "alpha", metas[0].Name)
	assert.Equal(t, "zebra", metas[1].Name)
	assert.Equal(t, sources.DefaultScheduleMinutes, metas[0].ScheduleMinutes)
	assert.Equal(t, sources.DefaultTrustScore, metas[0].TrustScore)
}
