package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/ppiankov/docscrape/internal/cache"
	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/util"
	"github.com/ppiankov/docscrape/internal/worker"
	"golang.org/x/net/publicsuffix"
)

// Browser is an HTML document session over HTTP. It is not safe for concurrent use.
type Browser struct {
	client  *resty.Client
	cfg     model.SessionConfig
	pages   *cache.PageCache
	limiter *worker.Limiter
	robots  *util.RobotsGate
	logger  *slog.Logger
	current *page
}

// Option configures a Browser
type Option func(*Browser)

// WithPageCache serves repeated GET navigations from pc
func WithPageCache(pc *cache.PageCache) Option {
	return func(b *Browser) { b.pages = pc }
}

// WithLimiter spaces navigations per host
func WithLimiter(l *worker.Limiter) Option {
	return func(b *Browser) { b.limiter = l }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// NewBrowser creates a browser session with a fresh cookie jar
func NewBrowser(cfg model.SessionConfig, opts ...Option) (*Browser, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	b := &Browser{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.cfg.MaxBodyBytes <= 0 {
		b.cfg.MaxBodyBytes = model.DefaultConfig().Session.MaxBodyBytes
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	b.client = resty.New().
		SetTransport(transport).
		SetCookieJar(jar).
		SetTimeout(cfg.ImplicitWait).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects)).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetLogger(restyLogger{b.logger})

	if cfg.RespectRobots {
		b.robots = util.NewRobotsGate(b.client, cfg.UserAgent)
	}
	return b, nil
}

// URL returns the address of the current page
func (b *Browser) URL() string {
	if b.current == nil {
		return ""
	}
	return b.current.url.String()
}

// Navigate loads rawURL, resolved against the current page
func (b *Browser) Navigate(ctx context.Context, rawURL string) error {
	target, err := b.resolve(rawURL)
	if err != nil {
		return err
	}
	return b.load(ctx, http.MethodGet, target, nil)
}

// Locate finds the first match in the current page
func (b *Browser) Locate(loc model.Locator) (Element, error) {
	if b.current == nil {
		return nil, fmt.Errorf("%w: %s: no page loaded", ErrElementNotFound, loc)
	}
	return locateFirst(b.current, b.current.doc.Selection, loc)
}

// LocateAll finds every match in the current page
func (b *Browser) LocateAll(loc model.Locator) ([]Element, error) {
	if b.current == nil {
		return nil, nil
	}
	return locateAll(b.current, b.current.doc.Selection, loc)
}

// Click follows a link or submits the form of a submit control
func (b *Browser) Click(ctx context.Context, el Element) error {
	e, ok := el.(*element)
	if !ok {
		return ErrNotInteractive
	}

	if isSubmitter(e.sel) {
		form := enclosingForm(e.sel)
		if form.Length() == 0 {
			return fmt.Errorf("%w: %s outside a form", ErrNotInteractive, e)
		}
		return b.submit(ctx, e.page, form, e.sel)
	}

	href, ok := e.sel.Attr("href")
	if !ok {
		return fmt.Errorf("%w: %s has no href", ErrNotInteractive, e)
	}
	href = strings.TrimSpace(href)
	if strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return fmt.Errorf("%w: script link", ErrNotInteractive)
	}
	if strings.HasPrefix(href, "#") {
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("%w: bad href %q", ErrNotInteractive, href)
	}
	return b.load(ctx, http.MethodGet, e.page.url.ResolveReference(ref), nil)
}

// Submit submits the element's form (the element itself when it is a form)
func (b *Browser) Submit(ctx context.Context, el Element) error {
	e, ok := el.(*element)
	if !ok {
		return ErrNotInteractive
	}

	form := enclosingForm(e.sel)
	if form.Length() == 0 {
		return fmt.Errorf("%w: %s outside a form", ErrNotInteractive, e)
	}

	var submitter *goquery.Selection
	if goquery.NodeName(e.sel) != "form" {
		submitter = e.sel
	}
	return b.submit(ctx, e.page, form, submitter)
}

func (b *Browser) submit(ctx context.Context, p *page, form, submitter *goquery.Selection) error {
	req, err := buildFormRequest(p.url, form, submitter)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInteractive, err)
	}

	if req.method == http.MethodPost {
		return b.load(ctx, http.MethodPost, req.target, req.values)
	}

	target := *req.target
	target.RawQuery = req.values.Encode()
	target.Fragment = ""
	return b.load(ctx, http.MethodGet, &target, nil)
}

func (b *Browser) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	if b.current != nil {
		ref = b.current.url.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return nil, fmt.Errorf("unsupported address %q", rawURL)
	}
	return ref, nil
}

// load fetches target and makes it the current page
func (b *Browser) load(ctx context.Context, method string, target *url.URL, form url.Values) error {
	address := target.String()

	// 1. Robots gate
	if b.robots != nil {
		allowed, delay := b.robots.Allowed(ctx, target)
		if !allowed {
			return fmt.Errorf("%w: %s", ErrDisallowed, address)
		}
		if b.limiter != nil {
			b.limiter.SlowDown(target.Host, delay)
		}
	}

	// 2. Page cache (GET only)
	if method == http.MethodGet && b.pages != nil {
		if p, ok := b.pages.Load(address); ok {
			b.logger.Debug("navigate", "url", address, "cached", true)
			return b.install(p)
		}
	}

	// 3. Per-host rate limit
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, address); err != nil {
			return navError(address, err)
		}
	}

	// 4. Fetch
	req := b.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	if form != nil {
		req.SetFormDataFromValues(form)
	}
	start := time.Now()
	resp, err := req.Execute(method, address)
	if err != nil {
		return navError(address, err)
	}
	raw := resp.RawBody()
	defer func() { _ = raw.Close() }()

	body, err := io.ReadAll(io.LimitReader(raw, b.cfg.MaxBodyBytes))
	if err != nil {
		return navError(address, err)
	}

	status := resp.StatusCode()
	b.logger.Debug("navigate", "method", method, "url", address, "status", status,
		"bytes", len(body), "elapsed", time.Since(start))
	if status < 200 || status >= 300 {
		return fmt.Errorf("navigate %s: unexpected status %d", address, status)
	}

	final := address
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}
	p := &cache.Page{URL: final, Status: status, Body: body, FetchedAt: time.Now()}

	// 5. Store and parse
	if method == http.MethodGet && b.pages != nil {
		if err := b.pages.Save(address, p); err != nil {
			b.logger.Warn("page cache write failed", "url", address, "err", err)
		}
	}
	return b.install(p)
}

func (b *Browser) install(p *cache.Page) error {
	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("parse page address: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.URL, err)
	}
	doc.Url = u
	b.current = &page{url: u, doc: doc}
	return nil
}

// navError maps transport timeouts to ErrNavigationTimeout
func navError(address string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrNavigationTimeout, address, err)
	}
	return fmt.Errorf("navigate %s: %w", address, err)
}

// restyLogger routes resty diagnostics through slog
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "http")
}
