package enrich

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/scrape"
)

var digitsRe = regexp.MustCompile(`\d+`)

// ParseYelp reads the star rating, review count and price range from a Yelp
// business page. Values that are missing from the markup stay zero.
func ParseYelp(page *scrape.Page, now time.Time) *model.SocialProfile {
	p := &model.SocialProfile{
		Platform:   model.PlatformYelp,
		ProfileURL: page.URL,
		ScrapedAt:  now.UTC(),
	}

	if label, ok := page.Doc.Find(`[aria-label*="star rating"]`).First().Attr("aria-label"); ok {
		if fields := strings.Fields(label); len(fields) > 0 {
			if r, err := strconv.ParseFloat(fields[0], 64); err == nil {
				p.Rating = r
			}
		}
	}

	text := strings.TrimSpace(page.Doc.Find(`a[href*="reviews"] span, span[class*="review"]`).First().Text())
	if m := digitsRe.FindString(text); m != "" {
		p.ReviewCount, _ = strconv.Atoi(m)
	}

	p.PriceRange = strings.TrimSpace(page.Doc.Find(`span[class*="priceRange"]`).First().Text())
	return p
}
