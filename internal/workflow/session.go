package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/gigharvest/internal/logger"
)

// Session defaults.
const (
	defaultRequestTimeout = 30 * time.Second
	defaultWaitTimeout    = 10 * time.Second
	waitPollInterval      = 500 * time.Millisecond
)

// Session errors.
var (
	ErrNoDocument       = errors.New("no document loaded")
	ErrSelectorNotFound = errors.New("selector not found")
	ErrWaitTimeout      = errors.New("timed out waiting for selector")
)

// Session abstracts the live automation session a workflow drives.
// Implementations own their transport; the interpreter only navigates,
// waits, clicks, scrolls and reads the current document.
type Session interface {
	// Navigate loads a URL and makes its document current.
	Navigate(ctx context.Context, pageURL string) error
	// WaitFor blocks until the selector is present or the timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Click activates the first element matching the selector, following
	// its link target when it has one.
	Click(ctx context.Context, selector string) error
	// Scroll advances the viewport to trigger lazy content.
	Scroll(ctx context.Context) error
	// Document returns the current page document.
	Document() (*goquery.Document, error)
	// URL returns the current page URL.
	URL() string
	// Close releases session resources.
	Close() error
}

// SessionOptions configure an HTTP session.
type SessionOptions struct {
	// UserAgent sent with every request
	UserAgent string
	// Headers added to every request
	Headers map[string]string
	// RequestTimeout bounds each page load; zero means the default
	RequestTimeout time.Duration
	// AllowedDomains restricts navigation when non-empty
	AllowedDomains []string
}

// HTTPSession is a colly-backed Session. Pages are fetched over plain
// HTTP and parsed with goquery; scroll is a no-op because the full
// document is already available.
type HTTPSession struct {
	collector *colly.Collector
	logger    logger.Interface

	mu         sync.Mutex
	currentDoc *goquery.Document
	currentURL string
}

// NewHTTPSession creates a session backed by a colly collector.
func NewHTTPSession(opts SessionOptions, log logger.Interface) *HTTPSession {
	collectorOpts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.Async(false),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}
	if len(opts.AllowedDomains) > 0 {
		collectorOpts = append(collectorOpts, colly.AllowedDomains(opts.AllowedDomains...))
	}

	c := colly.NewCollector(collectorOpts...)

	timeout := opts.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	c.SetRequestTimeout(timeout)

	s := &HTTPSession{
		collector: c,
		logger:    log,
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range opts.Headers {
			r.Headers.Set(k, v)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			log.Warn("Failed to parse response body",
				"url", r.Request.URL.String(),
				"error", err,
			)
			return
		}
		s.mu.Lock()
		s.currentDoc = doc
		s.currentURL = r.Request.URL.String()
		s.mu.Unlock()
	})

	return s
}

// Navigate loads a URL and makes its document current.
func (s *HTTPSession) Navigate(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("Navigating", "url", pageURL)
	if err := s.collector.Visit(pageURL); err != nil {
		return fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	s.mu.Lock()
	loaded := s.currentDoc != nil && s.currentURL == pageURL
	s.mu.Unlock()
	if !loaded {
		// Redirects land on a different URL; any parsed document counts.
		s.mu.Lock()
		loaded = s.currentDoc != nil
		s.mu.Unlock()
	}
	if !loaded {
		return fmt.Errorf("%w after visiting %s", ErrNoDocument, pageURL)
	}
	return nil
}

// WaitFor blocks until the selector matches in the current document,
// re-fetching the page between polls, or the timeout elapses. Static
// pages normally satisfy the wait on the first check.
func (s *HTTPSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = defaultWaitTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		doc, err := s.Document()
		if err != nil {
			return err
		}
		if doc.Find(selector).Length() > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPollInterval):
		}

		if err := s.refetch(ctx); err != nil {
			return err
		}
	}
}

// Click follows the link target of the first element matching the
// selector. Elements without an href cannot change page state over plain
// HTTP, so they are reported as not found.
func (s *HTTPSession) Click(ctx context.Context, selector string) error {
	doc, err := s.Document()
	if err != nil {
		return err
	}

	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrSelectorNotFound, selector)
	}

	href, ok := el.Attr("href")
	if !ok || href == "" {
		return fmt.Errorf("%w: %s has no link target", ErrSelectorNotFound, selector)
	}

	target, err := s.resolve(href)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, target)
}

// Scroll is a no-op for HTTP sessions; the full document is already
// parsed.
func (s *HTTPSession) Scroll(_ context.Context) error {
	s.logger.Debug("Scroll requested on HTTP session, nothing to do",
		"url", s.URL(),
	)
	return nil
}

// Document returns the current page document.
func (s *HTTPSession) Document() (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentDoc == nil {
		return nil, ErrNoDocument
	}
	return s.currentDoc, nil
}

// URL returns the current page URL.
func (s *HTTPSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// Close releases session resources.
func (s *HTTPSession) Close() error {
	s.collector.Wait()
	s.mu.Lock()
	s.currentDoc = nil
	s.mu.Unlock()
	return nil
}

// refetch reloads the current URL.
func (s *HTTPSession) refetch(ctx context.Context) error {
	current := s.URL()
	if current == "" {
		return ErrNoDocument
	}
	return s.Navigate(ctx, current)
}

// resolve makes href absolute against the current URL.
func (s *HTTPSession) resolve(href string) (string, error) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link target %q: %w", href, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}

	base, err := url.Parse(s.URL())
	if err != nil {
		return "", fmt.Errorf("invalid current url: %w", err)
	}
	return base.ResolveReference(parsed).String(), nil
}
