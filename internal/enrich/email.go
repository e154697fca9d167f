package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/scrape"
	"github.com/sells-group/geospark-cli/internal/store"
)

// Email sources, in waterfall order.
const (
	EmailSourceExisting  = "outscraper"
	EmailSourceSocialBio = "social_bio"
)

// ContactPaths are tried on the business domain after the homepage.
var ContactPaths = []string{"/contact", "/contact-us", "/about", "/about-us", "/team", "/our-team"}

var (
	junkLocalParts = map[string]bool{
		"noreply": true, "no-reply": true, "support": true, "info": true, "hello": true,
		"admin": true, "webmaster": true, "postmaster": true, "mailer-daemon": true, "sentry": true,
	}
	junkDomains = map[string]bool{
		"example.com": true, "sentry.io": true, "wixpress.com": true, "squarespace.com": true,
		"wordpress.com": true, "godaddy.com": true, "googleapis.com": true, "facebook.com": true,
		"instagram.com": true, "twitter.com": true,
	}
)

// EmailResult is a contact address and where it came from.
type EmailResult struct {
	Email      string                `json:"email"`
	Source     string                `json:"source"`
	Confidence model.EmailConfidence `json:"confidence"`
}

// IsJunkEmail reports whether an address is a role, vendor or asset address
// rather than a person at the business.
func IsJunkEmail(email string) bool {
	local, domain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok || local == "" || domain == "" {
		return true
	}
	if junkLocalParts[local] || junkDomains[domain] {
		return true
	}
	for _, ext := range []string{".png", ".jpg", ".gif"} {
		if strings.HasSuffix(domain, ext) {
			return true
		}
	}
	return false
}

// EmailFinder runs the email waterfall: an address already on the prospect,
// then the business website, then the social bio.
type EmailFinder struct {
	pages Pages
	retry resilience.RetryConfig
}

// NewEmailFinder creates an email finder.
func NewEmailFinder(pages Pages, retry resilience.RetryConfig) *EmailFinder {
	retry.OnRetry = resilience.RetryLogger("enrich", "email_finder")
	return &EmailFinder{pages: pages, retry: retry}
}

// Find returns the first usable address, or nil.
func (f *EmailFinder) Find(ctx context.Context, p *model.Prospect, profile *model.SocialProfile) *EmailResult {
	log := zap.L().With(zap.String("business", p.BusinessName))

	for _, candidate := range []string{p.OwnerEmail, p.ContactEmail} {
		if res := accept(candidate, EmailSourceExisting, model.ConfidenceHigh); res != nil {
			return res
		}
	}

	if p.Website != "" {
		if email := f.fromWebsite(ctx, SiteURL(p.Website)); email != "" {
			if res := accept(email, EmailSourceWebsite, model.ConfidenceHigh); res != nil {
				log.Info("enrich: found email", zap.String("source", res.Source))
				return res
			}
		}
	}

	if profile != nil {
		for _, m := range emailRe.FindAllString(profile.Bio, -1) {
			if res := accept(m, EmailSourceSocialBio, model.ConfidenceMedium); res != nil {
				log.Info("enrich: found email", zap.String("source", res.Source))
				return res
			}
		}
	}

	log.Info("enrich: no email found")
	return nil
}

func accept(email, source string, confidence model.EmailConfidence) *EmailResult {
	cleaned := normalize.CleanEmail(email)
	if cleaned == "" || IsJunkEmail(cleaned) {
		return nil
	}
	return &EmailResult{Email: cleaned, Source: source, Confidence: confidence}
}

// fromWebsite checks the homepage, then the common contact pages on the same
// domain. Pages that fail to load are skipped.
func (f *EmailFinder) fromWebsite(ctx context.Context, site string) string {
	urls := []string{site}
	if domain := normalize.Domain(site); domain != "" {
		for _, path := range ContactPaths {
			urls = append(urls, "https://"+domain+path)
		}
	}

	for _, u := range urls {
		page, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*scrape.Page, error) {
			return f.pages.GetOptional(ctx, resilience.ResourceWeb, u)
		})
		if err != nil {
			zap.L().Debug("enrich: contact page failed", zap.String("url", u), zap.Error(err))
			if ctx.Err() != nil {
				return ""
			}
			continue
		}
		if page == nil {
			continue
		}
		if email := pageEmail(page); email != "" {
			return email
		}
	}
	return ""
}

// pageEmail prefers mailto links and falls back to addresses in the text.
func pageEmail(page *scrape.Page) string {
	for _, email := range mailtoLinks(page.Doc) {
		if !IsJunkEmail(email) {
			return email
		}
	}
	for _, m := range emailRe.FindAllString(page.Text(), -1) {
		if !IsJunkEmail(m) {
			return m
		}
	}
	return ""
}

// SaveEmail writes a found address onto the prospect.
func SaveEmail(ctx context.Context, st store.Store, p *model.Prospect, res *EmailResult) error {
	if res == nil {
		return nil
	}
	err := store.UpdateProspect(ctx, st, p.ID, store.Record{
		"contact_email":    res.Email,
		"owner_email":      res.Email,
		"email_confidence": string(res.Confidence),
		"email_source":     res.Source,
	})
	if err != nil {
		return err
	}
	p.ContactEmail, p.OwnerEmail = res.Email, res.Email
	p.EmailConfidence = res.Confidence
	p.EmailSource = res.Source
	return nil
}
