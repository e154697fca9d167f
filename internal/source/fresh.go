package source

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/scrape"
)

// SearchURL is the HTML search endpoint used to find award lists.
const SearchURL = "https://html.duckduckgo.com/html/?q="

const (
	maxDirectoryCards  = 30
	awardQueriesPerRun = 2
	awardLinksPerQuery = 3
	maxAwardHeadings   = 20
)

const (
	cardSelector     = `[class*="business"], [class*="venue"], [class*="studio"], [class*="salon"], [class*="listing"], [class*="result"]`
	fallbackCards    = `article, .card, [data-testid]`
	nameSelector     = `h2, h3, h4, [class*='name'], [class*='title'], a[href]`
	addressSelector  = `[class*='address'], [class*='location'], address`
	phoneSelector    = `[class*='phone'], a[href^='tel:']`
	resultLinkSelect = `a.result__a`
)

var (
	listNumberRe  = regexp.MustCompile(`^\d+[\.\)\-\s]+`)
	awardTitleHit = []string{"best", "top", "award", "winner"}
)

// Pages fetches parsed HTML. A missing page is a nil page.
type Pages interface {
	GetOptional(ctx context.Context, resource, rawURL string) (*scrape.Page, error)
}

// Fresh is the secondary channel: booking directories and published
// "best of" award lists.
type Fresh struct {
	pages   Pages
	catalog *Catalog
	search  *resilience.Breaker
	retry   resilience.RetryConfig
	now     func() time.Time
}

// NewFresh creates the secondary channel. Searches go through the run's
// search breaker.
func NewFresh(pages Pages, catalog *Catalog, breakers *resilience.Breakers, retry resilience.RetryConfig) *Fresh {
	retry.OnRetry = resilience.RetryLogger("fresh_source", "fetch")
	return &Fresh{
		pages:   pages,
		catalog: catalog,
		search:  breakers.Get(resilience.ResourceSearch),
		retry:   retry,
		now:     time.Now,
	}
}

// Name implements Source.
func (f *Fresh) Name() model.Source { return model.SourceFresh }

// Scrape implements Source. Half the limit goes to directories and the rest
// to award lists; names are deduplicated across both.
func (f *Fresh) Scrape(ctx context.Context, target Target, limit int) ([]model.RawProspect, error) {
	if limit <= 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	accept := func(name string) bool {
		key := normalize.BusinessKey(name)
		if key == "" || seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	out := f.directories(ctx, target, (limit+1)/2, accept)
	out = append(out, f.awardLists(ctx, target, limit-len(out), accept)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zap.L().Info("source: fresh sources complete",
		zap.String("category", target.Category), zap.Int("prospects", len(out)))
	return out, nil
}

func (f *Fresh) get(ctx context.Context, resource, rawURL string) (*scrape.Page, error) {
	return resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*scrape.Page, error) {
		return f.pages.GetOptional(ctx, resource, rawURL)
	})
}

// directories scrapes listing cards from each directory for the category.
// A directory that fails is skipped.
func (f *Fresh) directories(ctx context.Context, target Target, limit int, accept func(string) bool) []model.RawProspect {
	var out []model.RawProspect
	for _, dir := range f.catalog.DirectoriesFor(target.Category) {
		if len(out) >= limit || ctx.Err() != nil {
			break
		}
		u := DirectoryURL(dir.URL, target.City())
		page, err := f.get(ctx, resilience.ResourceWeb, u)
		if err != nil {
			zap.L().Warn("source: directory failed", zap.String("directory", dir.Name), zap.Error(err))
			continue
		}
		if page == nil {
			continue
		}
		for _, raw := range ParseDirectory(page.Doc, target) {
			if !accept(raw.BusinessName) {
				continue
			}
			raw.SourceDetails = map[string]any{"detail": "software_directory:" + dir.Name}
			out = append(out, raw)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// DirectoryURL fills a directory URL template for a city.
func DirectoryURL(template, city string) string {
	return strings.NewReplacer(
		"{city_slug}", normalize.CitySlug(city),
		"{city}", url.QueryEscape(city),
	).Replace(template)
}

// ParseDirectory reads business cards from a directory listing page.
func ParseDirectory(doc *goquery.Document, target Target) []model.RawProspect {
	cards := doc.Find(cardSelector)
	if cards.Length() == 0 {
		cards = doc.Find(fallbackCards)
	}

	var out []model.RawProspect
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= maxDirectoryCards {
			return false
		}
		name := collapse(card.Find(nameSelector).First().Text())
		if len(name) < 3 || len(name) > 100 {
			return true
		}
		raw := model.RawProspect{
			BusinessName: name,
			Category:     target.Category,
			City:         target.City(),
			State:        target.StateCode(),
			Address:      collapse(card.Find(addressSelector).First().Text()),
			Source:       model.SourceFresh,
		}
		phone := card.Find(phoneSelector).First()
		if href, ok := phone.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
			raw.Phone = strings.TrimPrefix(href, "tel:")
		} else {
			raw.Phone = collapse(phone.Text())
		}
		out = append(out, raw)
		return true
	})
	return out
}

// awardLists searches for published award lists and reads business names
// from their headings. Searching stops when the search channel is disabled.
func (f *Fresh) awardLists(ctx context.Context, target Target, limit int, accept func(string) bool) []model.RawProspect {
	if limit <= 0 {
		return nil
	}
	queries := f.catalog.AwardQueriesFor(target.Category)
	if len(queries) > awardQueriesPerRun {
		queries = queries[:awardQueriesPerRun]
	}

	var out []model.RawProspect
	for _, q := range queries {
		if len(out) >= limit || ctx.Err() != nil {
			break
		}
		links, err := f.searchAwards(ctx, f.awardQuery(q, target))
		if err != nil {
			zap.L().Warn("source: award search failed", zap.String("query", q), zap.Error(err),
				zap.String("kind", string(resilience.Classify(err))))
			if eris.Is(err, resilience.ErrChannelDisabled) {
				break
			}
			continue
		}
		for _, link := range links {
			if len(out) >= limit {
				break
			}
			page, err := f.get(ctx, resilience.ResourceWeb, link)
			if err != nil || page == nil {
				continue
			}
			for _, name := range AwardNames(page.Doc, f.catalog.AwardSkipWords) {
				if !accept(name) {
					continue
				}
				out = append(out, model.RawProspect{
					BusinessName:  name,
					Category:      target.Category,
					City:          target.City(),
					State:         target.StateCode(),
					Source:        model.SourceFresh,
					SourceDetails: map[string]any{"detail": "award_list:" + link},
				})
				if len(out) >= limit {
					break
				}
			}
		}
	}
	return out
}

func (f *Fresh) awardQuery(template string, target Target) string {
	return strings.NewReplacer(
		"{city}", target.City(),
		"{category}", strings.ToLower(target.Category),
		"{year}", strconv.Itoa(f.now().Year()),
	).Replace(template)
}

func (f *Fresh) searchAwards(ctx context.Context, query string) ([]string, error) {
	page, err := resilience.ExecuteVal(ctx, f.search, func(ctx context.Context) (*scrape.Page, error) {
		return f.get(ctx, resilience.ResourceSearch, SearchURL+url.QueryEscape(query))
	})
	if err != nil || page == nil {
		return nil, err
	}
	return AwardLinks(page.Doc), nil
}

// AwardLinks returns the first result links whose title reads like an
// award list.
func AwardLinks(doc *goquery.Document) []string {
	var out []string
	doc.Find(resultLinkSelect).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title := strings.ToLower(a.Text())
		if !containsAny(title, awardTitleHit) {
			return true
		}
		href, _ := a.Attr("href")
		if u := resultURL(href); u != "" {
			out = append(out, u)
		}
		return len(out) < awardLinksPerQuery
	})
	return out
}

// resultURL unwraps a search redirect link to its target.
func resultURL(href string) string {
	u, err := url.Parse(scrape.Resolve("https://duckduckgo.com/", href))
	if err != nil || u.Host == "" {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		return ""
	}
	return u.String()
}

// AwardNames reads business names from an article's h2/h3 headings.
func AwardNames(doc *goquery.Document, skip []string) []string {
	var out []string
	doc.Find("h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		text := collapse(h.Text())
		if len(text) < 3 || len(text) > 80 {
			return true
		}
		if containsAny(strings.ToLower(text), skip) {
			return true
		}
		name := strings.TrimSpace(listNumberRe.ReplaceAllString(text, ""))
		if len(name) < 3 {
			return true
		}
		out = append(out, normalize.TitleCase(name))
		return len(out) < maxAwardHeadings
	})
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
