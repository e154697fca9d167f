// Package outscraper provides a client for the Outscraper Google Maps API.
package outscraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/resilience"
)

// Client defines the Outscraper operations used by the pipeline.
type Client interface {
	// MapsSearch runs a Google Maps search and returns the places found.
	// A query with no results returns an empty slice, not an error.
	MapsSearch(ctx context.Context, query string, limit int, opts ...SearchOption) ([]Place, error)
}

// Place is one Google Maps result. Every field may be missing in the
// response; missing values decode to their zero value.
type Place struct {
	Name          string      `json:"name"`
	Site          string      `json:"site"`
	Type          string      `json:"type"`
	Email1        string      `json:"email_1"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone"`
	PhoneNumber   string      `json:"phone_number"`
	OwnerName     string      `json:"owner_name"`
	ContactName   string      `json:"contact_name"`
	FullAddress   string      `json:"full_address"`
	PostalCode    string      `json:"postal_code"`
	Rating        float64     `json:"rating"`
	Reviews       float64     `json:"reviews"`
	PhotosCount   float64     `json:"photos_count"`
	GoogleMapsURL string      `json:"google_maps_url"`
	Link          string      `json:"link"`
	PlaceID       string      `json:"place_id"`
	SocialMedia   SocialLinks `json:"social_media"`
	Facebook      string      `json:"facebook"`
	Instagram     string      `json:"instagram"`
}

// ReviewCount returns the review count as an int.
func (p Place) ReviewCount() int { return int(p.Reviews) }

// BestEmail returns email_1, falling back to email.
func (p Place) BestEmail() string {
	if p.Email1 != "" {
		return p.Email1
	}
	return p.Email
}

// BestPhone returns phone, falling back to phone_number.
func (p Place) BestPhone() string {
	if p.Phone != "" {
		return p.Phone
	}
	return p.PhoneNumber
}

// MapsURL returns google_maps_url, falling back to link.
func (p Place) MapsURL() string {
	if p.GoogleMapsURL != "" {
		return p.GoogleMapsURL
	}
	return p.Link
}

// URLs returns the site and every social link on the place, in that order.
func (p Place) URLs() []string {
	out := make([]string, 0, len(p.SocialMedia)+3)
	for _, u := range append([]string{p.Site, p.Instagram, p.Facebook}, p.SocialMedia...) {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// SocialLinks decodes social_media, which the API returns either as a list of
// URLs, a list of {"url": ...} objects, or a map of network to URL.
type SocialLinks []string

// UnmarshalJSON implements json.Unmarshaler. Shapes that match none of the
// known forms decode to an empty list.
func (s *SocialLinks) UnmarshalJSON(data []byte) error {
	*s = nil

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		for _, item := range list {
			var str string
			if json.Unmarshal(item, &str) == nil {
				*s = append(*s, str)
				continue
			}
			var obj struct {
				URL string `json:"url"`
			}
			if json.Unmarshal(item, &obj) == nil && obj.URL != "" {
				*s = append(*s, obj.URL)
			}
		}
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		for _, v := range m {
			if str, ok := v.(string); ok && str != "" {
				*s = append(*s, str)
			}
		}
		sort.Strings(*s)
	}
	return nil
}

type searchResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Data   [][]Place `json:"data"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	extractContacts bool
	language        string
}

// WithContacts asks Outscraper to enrich results with emails and social links.
func WithContacts() SearchOption {
	return func(o *searchOpts) { o.extractContacts = true }
}

// Option configures the Outscraper client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Outscraper client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.app.outscraper.com",
		http: &http.Client{
			// Synchronous searches with contact extraction can take minutes.
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) MapsSearch(ctx context.Context, query string, limit int, opts ...SearchOption) ([]Place, error) {
	so := &searchOpts{language: "en"}
	for _, opt := range opts {
		opt(so)
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("language", so.language)
	q.Set("async", "false")
	if so.extractContacts {
		q.Set("enrichment", "domains_service")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/search-v3?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "outscraper: request failed"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "outscraper: read response body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.RateLimitedf("outscraper: status 429")
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("outscraper: status %d: %s", resp.StatusCode, truncate(body)), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("outscraper: unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resilience.NewParseError("outscraper", err)
	}
	if len(result.Data) == 0 {
		return []Place{}, nil
	}

	places := make([]Place, 0, len(result.Data[0]))
	for _, p := range result.Data[0] {
		if p.Name != "" {
			places = append(places, p)
		}
	}
	return places, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
