// Package enrich fills in a scraped prospect from its website, review-site
// listing, contact pages and nearby competitors.
package enrich

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/scrape"
)

// Pages fetches and parses HTML pages through the run's rate limiters.
type Pages interface {
	Get(ctx context.Context, resource, rawURL string) (*scrape.Page, error)
	GetOptional(ctx context.Context, resource, rawURL string) (*scrape.Page, error)
}

// Website platforms.
const (
	PlatformSquarespace = "squarespace"
	PlatformWix         = "wix"
	PlatformWordPress   = "wordpress"
	PlatformShopify     = "shopify"
	PlatformGoDaddy     = "godaddy"
	PlatformCustom      = "custom"
)

const maxSiteEmails = 5

var (
	emailRe         = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	bookingKeywords = []string{"book now", "book online", "schedule", "appointment", "reserve"}
	// Substrings of addresses that are never a business contact.
	siteEmailNoise = []string{"example.com", "sentry.io", "wixpress", "schema.org"}
	socialNetworks = []string{"instagram", "facebook", "tiktok", "youtube"}
)

// WebsiteAnalysis summarizes a business homepage.
type WebsiteAnalysis struct {
	URL            string            `json:"url"`
	HasSSL         bool              `json:"has_ssl"`
	HasBooking     bool              `json:"has_booking"`
	HasBlog        bool              `json:"has_blog"`
	Platform       string            `json:"platform"`
	EstimatedPages int               `json:"estimated_pages"`
	SocialLinks    map[string]string `json:"social_links,omitempty"`
	Emails         []string          `json:"emails,omitempty"`
}

// SiteURL adds a scheme to a bare domain.
func SiteURL(website string) string {
	website = strings.TrimSpace(website)
	if website == "" || strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "https://" + website
}

// AnalyzeWebsite inspects a parsed homepage.
func AnalyzeWebsite(page *scrape.Page) *WebsiteAnalysis {
	html := strings.ToLower(page.HTML)
	text := strings.ToLower(page.Text())

	a := &WebsiteAnalysis{
		URL:         page.URL,
		HasSSL:      strings.HasPrefix(page.URL, "https://"),
		HasBlog:     page.Doc.Find(`a[href*="blog"], a[href*="articles"], a[href*="news"]`).Length() > 0,
		Platform:    detectPlatform(html),
		SocialLinks: socialLinks(page.Doc),
		Emails:      siteEmails(page.Doc, page.HTML),
	}
	for _, kw := range bookingKeywords {
		if strings.Contains(text, kw) {
			a.HasBooking = true
			break
		}
	}

	nav := map[string]bool{}
	page.Doc.Find("nav a, header a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasPrefix(href, "/") && len(href) > 1 {
			nav[href] = true
		}
	})
	a.EstimatedPages = len(nav)
	return a
}

func detectPlatform(html string) string {
	switch {
	case strings.Contains(html, "squarespace"):
		return PlatformSquarespace
	case strings.Contains(html, "wix"):
		return PlatformWix
	case strings.Contains(html, "wordpress"), strings.Contains(html, "wp-content"):
		return PlatformWordPress
	case strings.Contains(html, "shopify"):
		return PlatformShopify
	case strings.Contains(html, "godaddy"):
		return PlatformGoDaddy
	}
	return PlatformCustom
}

// socialLinks returns the first link to each social network.
func socialLinks(doc *goquery.Document) map[string]string {
	links := map[string]string{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		for _, network := range socialNetworks {
			if _, ok := links[network]; !ok && strings.Contains(lower, network+".com/") {
				links[network] = href
				return
			}
		}
	})
	return links
}

func siteEmails(doc *goquery.Document, html string) []string {
	found := map[string]bool{}
	for _, m := range emailRe.FindAllString(html, -1) {
		email := normalize.CleanEmail(m)
		if email != "" && !containsAny(email, siteEmailNoise) {
			found[email] = true
		}
	}
	for _, email := range mailtoLinks(doc) {
		found[email] = true
	}

	out := make([]string, 0, len(found))
	for e := range found {
		out = append(out, e)
	}
	sort.Strings(out)
	if len(out) > maxSiteEmails {
		out = out[:maxSiteEmails]
	}
	return out
}

// mailtoLinks returns cleaned mailto addresses in document order.
func mailtoLinks(doc *goquery.Document) []string {
	var out []string
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr, _, _ := strings.Cut(strings.TrimPrefix(href, "mailto:"), "?")
		if email := normalize.CleanEmail(addr); email != "" {
			out = append(out, email)
		}
	})
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
