// Package instantly provides a client for the Instantly v2 cold-email API.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/resilience"
)

// Client defines the Instantly operations used by the uploader.
type Client interface {
	// FindCampaign returns the campaign with exactly the given name, or nil.
	FindCampaign(ctx context.Context, name string) (*Campaign, error)
	CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error)
	AddLead(ctx context.Context, lead Lead) (*Lead, error)
}

// Campaign is an Instantly campaign.
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status int    `json:"status,omitempty"`
}

// Timing is a daily sending window in HH:MM.
type Timing struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Schedule is one named sending schedule. Days are keyed "0" (Sunday)
// through "6".
type Schedule struct {
	Name     string          `json:"name"`
	Timing   Timing          `json:"timing"`
	Days     map[string]bool `json:"days"`
	Timezone string          `json:"timezone"`
}

// CampaignSchedule wraps the schedules of a campaign.
type CampaignSchedule struct {
	Schedules []Schedule `json:"schedules"`
}

// CreateCampaignRequest is the body of POST /campaigns.
type CreateCampaignRequest struct {
	Name             string           `json:"name"`
	CampaignSchedule CampaignSchedule `json:"campaign_schedule"`
}

// WeekdaySchedule returns a Monday to Friday schedule between from and to.
func WeekdaySchedule(name, from, to, timezone string) CampaignSchedule {
	return CampaignSchedule{Schedules: []Schedule{{
		Name:     name,
		Timing:   Timing{From: from, To: to},
		Days:     map[string]bool{"1": true, "2": true, "3": true, "4": true, "5": true},
		Timezone: timezone,
	}}}
}

// Lead is a contact added to a campaign. CustomVariables are available to
// the campaign's email templates.
type Lead struct {
	ID              string            `json:"id,omitempty"`
	Campaign        string            `json:"campaign"`
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	CompanyName     string            `json:"company_name,omitempty"`
	Website         string            `json:"website,omitempty"`
	Phone           string            `json:"phone,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

// Option configures the Instantly client.
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

// NewClient creates a new Instantly client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.instantly.ai/api/v2",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "instantly: marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "instantly: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "instantly: %s %s", method, path), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "instantly: read response body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return resilience.RateLimitedf("instantly: %s %s: status 429", method, path)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("instantly: %s %s: status %d", method, path, resp.StatusCode), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return eris.Errorf("instantly: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resilience.NewParseError("instantly", err)
	}
	return nil
}

type campaignList struct {
	Items             []Campaign `json:"items"`
	NextStartingAfter string     `json:"next_starting_after"`
}

func (c *httpClient) FindCampaign(ctx context.Context, name string) (*Campaign, error) {
	cursor := ""
	for {
		q := url.Values{"search": {name}, "limit": {"100"}}
		if cursor != "" {
			q.Set("starting_after", cursor)
		}
		var page campaignList
		if err := c.do(ctx, http.MethodGet, "/campaigns?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for i := range page.Items {
			if page.Items[i].Name == name {
				return &page.Items[i], nil
			}
		}
		if page.NextStartingAfter == "" || len(page.Items) == 0 {
			return nil, nil
		}
		cursor = page.NextStartingAfter
	}
}

func (c *httpClient) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error) {
	var out Campaign
	if err := c.do(ctx, http.MethodPost, "/campaigns", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, eris.Errorf("instantly: create campaign %q returned no id", req.Name)
	}
	return &out, nil
}

func (c *httpClient) AddLead(ctx context.Context, lead Lead) (*Lead, error) {
	if lead.Campaign == "" || lead.Email == "" {
		return nil, eris.New("instantly: lead needs campaign and email")
	}
	var out Lead
	if err := c.do(ctx, http.MethodPost, "/leads", lead, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
