// Package instagram provides a client for Instagram's public web profile and
// media comment endpoints.
package instagram

import (
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

// webAppID is the application id the Instagram web client sends.
const webAppID = "936619743392459"

// Client defines the Instagram operations used by the pipeline.
type Client interface {
	// Profile returns the public profile with its most recent posts, or nil
	// when the account does not exist.
	Profile(ctx context.Context, username string) (*Profile, error)
	// Comments returns up to limit comments on a post.
	Comments(ctx context.Context, mediaID string, limit int) ([]Comment, error)
}

// Profile is an Instagram account with its recent posts.
type Profile struct {
	Username    string
	FullName    string
	Biography   string
	ExternalURL string
	Category    string
	Followers   int
	Following   int
	MediaCount  int
	IsBusiness  bool
	IsPrivate   bool
	Posts       []Post
}

// Post is one timeline post.
type Post struct {
	ID        string
	Shortcode string
	TypeName  string
	IsVideo   bool
	TakenAt   time.Time
	Caption   string
	Likes     int
	Comments  int
	Views     int
}

// Type returns carousel, video or photo.
func (p Post) Type() string {
	switch {
	case p.TypeName == "GraphSidecar":
		return "carousel"
	case p.IsVideo:
		return "video"
	default:
		return "photo"
	}
}

// URL returns the permalink of the post.
func (p Post) URL() string {
	return "https://instagram.com/p/" + p.Shortcode
}

// Comment is one comment on a post.
type Comment struct {
	Username  string
	Text      string
	CreatedAt time.Time
}

// Option configures the Instagram client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithSessionID authenticates requests with a logged-in session cookie.
func WithSessionID(id string) Option {
	return func(c *httpClient) { c.sessionID = id }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.http.Timeout = d }
}

type httpClient struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

// NewClient creates a new Instagram client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://i.instagram.com",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) (bool, error) {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, eris.Wrap(err, "instagram: create request")
	}
	req.Header.Set("x-ig-app-id", webAppID)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 300.0.0.0")
	req.Header.Set("Accept", "application/json")
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, resilience.NewTransientError(eris.Wrap(err, "instagram: request failed"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return false, resilience.NewTransientError(eris.Wrap(err, "instagram: read body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	// Instagram answers throttled clients with 429, or with 401 and a login
	// prompt.
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusUnauthorized:
		return false, resilience.RateLimitedf("instagram: status %d", resp.StatusCode)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return false, resilience.NewTransientError(eris.Errorf("instagram: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, eris.Errorf("instagram: unexpected status %d", resp.StatusCode)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		// A login page served with 200.
		return false, resilience.RateLimitedf("instagram: login wall")
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, resilience.NewParseError("instagram", err)
	}
	return true, nil
}

type countField struct {
	Count int `json:"count"`
}

type profileResponse struct {
	Data struct {
		User *struct {
			Username         string     `json:"username"`
			FullName         string     `json:"full_name"`
			Biography        string     `json:"biography"`
			ExternalURL      string     `json:"external_url"`
			CategoryName     string     `json:"category_name"`
			IsBusiness       bool       `json:"is_business_account"`
			IsPrivate        bool       `json:"is_private"`
			EdgeFollowedBy   countField `json:"edge_followed_by"`
			EdgeFollow       countField `json:"edge_follow"`
			EdgeOwnerToMedia struct {
				Count int `json:"count"`
				Edges []struct {
					Node mediaNode `json:"node"`
				} `json:"edges"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

type mediaNode struct {
	ID                 string     `json:"id"`
	Shortcode          string     `json:"shortcode"`
	TypeName           string     `json:"__typename"`
	IsVideo            bool       `json:"is_video"`
	TakenAt            int64      `json:"taken_at_timestamp"`
	VideoViewCount     int        `json:"video_view_count"`
	EdgeLikedBy        countField `json:"edge_liked_by"`
	EdgePreviewLike    countField `json:"edge_media_preview_like"`
	EdgeMediaToComment countField `json:"edge_media_to_comment"`
	EdgeMediaToCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
}

func (n mediaNode) post() Post {
	p := Post{
		ID:        n.ID,
		Shortcode: n.Shortcode,
		TypeName:  n.TypeName,
		IsVideo:   n.IsVideo,
		TakenAt:   time.Unix(n.TakenAt, 0).UTC(),
		Likes:     max(n.EdgeLikedBy.Count, n.EdgePreviewLike.Count),
		Comments:  n.EdgeMediaToComment.Count,
	}
	if n.IsVideo {
		p.Views = n.VideoViewCount
	}
	if len(n.EdgeMediaToCaption.Edges) > 0 {
		p.Caption = n.EdgeMediaToCaption.Edges[0].Node.Text
	}
	return p
}

func (c *httpClient) Profile(ctx context.Context, username string) (*Profile, error) {
	username = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if username == "" {
		return nil, nil
	}

	var resp profileResponse
	found, err := c.get(ctx, "/api/v1/users/web_profile_info/", url.Values{"username": {username}}, &resp)
	if err != nil {
		return nil, eris.Wrapf(err, "instagram: profile @%s", username)
	}
	if !found || resp.Data.User == nil {
		return nil, nil
	}

	u := resp.Data.User
	p := &Profile{
		Username:    u.Username,
		FullName:    u.FullName,
		Biography:   u.Biography,
		ExternalURL: u.ExternalURL,
		Category:    u.CategoryName,
		Followers:   u.EdgeFollowedBy.Count,
		Following:   u.EdgeFollow.Count,
		MediaCount:  u.EdgeOwnerToMedia.Count,
		IsBusiness:  u.IsBusiness,
		IsPrivate:   u.IsPrivate,
	}
	if p.Username == "" {
		p.Username = username
	}
	for _, e := range u.EdgeOwnerToMedia.Edges {
		p.Posts = append(p.Posts, e.Node.post())
	}
	return p, nil
}

type commentsResponse struct {
	Comments []struct {
		Text      string `json:"text"`
		CreatedAt int64  `json:"created_at"`
		User      struct {
			Username string `json:"username"`
		} `json:"user"`
	} `json:"comments"`
	NextMinID string `json:"next_min_id"`
}

func (c *httpClient) Comments(ctx context.Context, mediaID string, limit int) ([]Comment, error) {
	var out []Comment
	minID := ""
	for len(out) < limit {
		q := url.Values{"can_support_threading": {"true"}}
		if minID != "" {
			q.Set("min_id", minID)
		}
		var resp commentsResponse
		found, err := c.get(ctx, "/api/v1/media/"+url.PathEscape(mediaID)+"/comments/", q, &resp)
		if err != nil {
			return out, eris.Wrapf(err, "instagram: comments %s", mediaID)
		}
		if !found {
			break
		}
		for _, cm := range resp.Comments {
			if len(out) >= limit {
				break
			}
			out = append(out, Comment{
				Username:  cm.User.Username,
				Text:      cm.Text,
				CreatedAt: time.Unix(cm.CreatedAt, 0).UTC(),
			})
		}
		if resp.NextMinID == "" || len(resp.Comments) == 0 {
			break
		}
		minID = resp.NextMinID
	}
	return out, nil
}
