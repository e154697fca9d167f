// Package scrape fetches and parses HTML pages from scraping targets. Every
// request goes through the shared per-resource limiter and a per-host
// adaptive limiter, and anti-bot responses surface as rate-limited errors so
// callers can disable the channel.
package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/geospark-cli/internal/resilience"
)

// DefaultUserAgent is sent on every request.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrNotFound is returned for 404 and 410 responses.
var ErrNotFound = eris.New("scrape: page not found")

// Page is a fetched and parsed HTML page.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
	Doc        *goquery.Document
}

// Text returns the visible text of the page with whitespace collapsed.
func (p *Page) Text() string {
	body := p.Doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

// Options configures a Fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	HostRate     rate.Limit
	HostBurst    int
}

// Fetcher retrieves HTML pages. It is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	opts     Options
	limiters *resilience.Limiters
	hosts    *hostLimiters
}

// NewFetcher creates a Fetcher that spaces calls with the given limiter
// registry.
func NewFetcher(limiters *resilience.Limiters, opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	if opts.HostRate == 0 {
		opts.HostRate = 2
	}
	if opts.HostBurst == 0 {
		opts.HostBurst = 1
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
		hosts:    newHostLimiters(opts.HostRate, opts.HostBurst),
	}
}

// Get fetches rawURL as the named resource. Non-2xx responses are errors:
// 404/410 wrap ErrNotFound, blocks and 429 wrap resilience.ErrRateLimited,
// 5xx are transient.
func (f *Fetcher) Get(ctx context.Context, resource, rawURL string) (*Page, error) {
	return resilience.CallVal(ctx, f.limiters.Get(resource), func(ctx context.Context) (*Page, error) {
		return f.fetch(ctx, rawURL)
	})
}

// GetOptional is Get with not-found mapped to a nil page.
func (f *Fetcher) GetOptional(ctx context.Context, resource, rawURL string) (*Page, error) {
	page, err := f.Get(ctx, resource, rawURL)
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, eris.Errorf("scrape: invalid url %q", rawURL)
	}
	host := u.Hostname()

	hl := f.hosts.get(host)
	if err := hl.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scrape: host limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "scrape: fetch %s", host), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "scrape: read body %s", host), resp.StatusCode)
	}

	if blocked, bt := DetectBlock(resp, raw); blocked {
		hl.OnBlock(host)
		return nil, resilience.RateLimitedf("scrape: %s blocked (%s)", host, bt)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, eris.Wrapf(ErrNotFound, "%s", rawURL)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("scrape: %s status %d", host, resp.StatusCode), resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, eris.Errorf("scrape: %s status %d", host, resp.StatusCode)
	}
	hl.OnSuccess()

	body, err := decodeCharset(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		zap.L().Debug("scrape: charset decode failed, using raw bytes",
			zap.String("url", rawURL), zap.Error(err))
		body = raw
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, resilience.NewParseError("scrape", err)
	}

	return &Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		Doc:        doc,
	}, nil
}

// decodeCharset converts body to UTF-8 using the charset parameter of the
// Content-Type header.
func decodeCharset(body []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: unsupported charset %q", charset)
	}
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: decode %s", charset)
	}
	return out, nil
}

// Resolve turns href into an absolute URL relative to base. Unparseable
// input returns "".
func Resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}
