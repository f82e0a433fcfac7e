package plugin_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/sources"
	"github.com/jonesrussell/gigharvest/internal/transform"
	"github.com/jonesrussell/gigharvest/internal/workflow"
)

// cannedSession serves fixed HTML for every navigation.
type cannedSession struct {
	html   string
	doc    *goquery.Document
	closed bool
}

func (s *cannedSession) Navigate(context.Context, string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return err
	}
	s.doc = doc
	return nil
}

func (s *cannedSession) WaitFor(context.Context, string, time.Duration) error { return nil }
func (s *cannedSession) Click(context.Context, string) error                  { return nil }
func (s *cannedSession) Scroll(context.Context) error                         { return nil }

func (s *cannedSession) Document() (*goquery.Document, error) {
	if s.doc == nil {
		return nil, workflow.ErrNoDocument
	}
	return s.doc, nil
}

func (s *cannedSession) URL() string  { return "" }
func (s *cannedSession) Close() error { s.closed = true; return nil }

func compiled(t *testing.T, cfg *sources.Config, sess workflow.Session) *plugin.DeclarativePlugin {
	t.Helper()
	p, err := plugin.CompileConfig(cfg, transform.NewRegistry(), logger.NewNoOp())
	require.NoError(t, err)
	p.SetSessionFactory(func(workflow.SessionOptions, logger.Interface) workflow.Session {
		return sess
	})
	return p
}

func TestDeclarativeFetchAndNormalize(t *testing.T) {
	sess := &cannedSession{html: `
<html><body>
  <div class="event">
    <h2>The Cure</h2>
    <time>2026-04-01 20:00</time>
    <span class="price">$25</span>
  </div>
  <div class="event">
    <h2>Bonobo</h2>
    <time>not a date</time>
  </div>
</body></html>`}

	cfg := declarativeConfig("massey-hall")
	cfg.Site.Timezone = "UTC"
	cfg.Workflow = []workflow.Action{
		{Type: workflow.ActionNavigate, URL: "https://example.com/events"},
		{
			Type:      workflow.ActionExtract,
			Container: "div.event",
			Fields: workflow.FieldMap{
				"title": {Selector: "h2", Required: true},
				"start": {Selector: "time"},
				"price": {Selector: "span.price"},
			},
		},
	}
	cfg.Mapping = sources.Mapping{Title: "title", StartTime: "start", Price: "price"}

	p := compiled(t, cfg, sess)

	raw, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.True(t, sess.closed)

	gigs, errs := p.Normalize(raw)

	// The unparseable start time fails its record, not the batch.
	require.Len(t, gigs, 1)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "record 1")

	gig := gigs[0]
	assert.Equal(t, "massey-hall", gig.Source)
	assert.Equal(t, "The Cure", gig.Title)
	assert.Equal(t, time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC), gig.StartTime)
	require.NotNil(t, gig.Price)
	assert.Equal(t, domain.PriceRange{Min: 25, Max: 25, Currency: "USD"}, *gig.Price)
	assert.NotEmpty(t, gig.ID)
	assert.NotEmpty(t, gig.ContentHash)
}

func TestDeclarativeNormalizeIsDeterministic(t *testing.T) {
	cfg := declarativeConfig("massey-hall")
	p := compiled(t, cfg, &cannedSession{})

	raw := []domain.RawRecord{{
		"title": "The Cure",
		"start": "2026-04-01T20:00:00Z",
	}}

	first, errs := p.Normalize(raw)
	require.Empty(t, errs)
	second, errs := p.Normalize(raw)
	require.Empty(t, errs)
	assert.Equal(t, first, second)
}
