package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/social"
	"github.com/sells-group/geospark-cli/pkg/instagram"
)

const (
	maxEngagementProspects = 30
	maxPostsScanned        = 20
	postsPerCreator        = 2
	commentsPerPost        = 100
	prospectsPerPost       = 10
	maxConsecutiveFailures = 2
	marketingPostMaxAge    = 30 * 24 * time.Hour
	minMarketingKeywords   = 2
	minPostComments        = 300
	minPostLikes           = 5000
	maxCommentDetail       = 200
)

var bioEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Instagram is the run's Instagram channel.
type Instagram interface {
	Profile(ctx context.Context, username string) (*instagram.Profile, error)
	Comments(ctx context.Context, mediaID string, limit int) ([]instagram.Comment, error)
	Breaker() *resilience.Breaker
}

// Engagement is the tertiary channel: business owners commenting on
// marketing posts by creators who coach their category.
type Engagement struct {
	ig       Instagram
	catalog  *Catalog
	maxPosts int
	now      func() time.Time
}

// NewEngagement creates the tertiary channel.
func NewEngagement(ig Instagram, catalog *Catalog) *Engagement {
	return &Engagement{
		ig:       ig,
		catalog:  catalog,
		maxPosts: social.DefaultMaxPosts,
		now:      time.Now,
	}
}

// Name implements Source.
func (e *Engagement) Name() model.Source { return model.SourceEngagement }

// scan holds the state of one Scrape call.
type scan struct {
	target   Target
	limit    int
	keywords []string
	seen     map[string]bool
	failures int
	out      []model.RawProspect
}

// Scrape implements Source. Two Instagram failures in a row abort the scan
// and disable the channel for the rest of the run; prospects found before the
// abort are returned with the error.
func (e *Engagement) Scrape(ctx context.Context, target Target, limit int) ([]model.RawProspect, error) {
	if limit <= 0 {
		return nil, nil
	}
	if b := e.ig.Breaker(); b.Open() {
		return nil, eris.Wrap(resilience.ErrChannelDisabled, "source: engagement")
	}
	if limit > maxEngagementProspects {
		limit = maxEngagementProspects
	}

	creators := target.Creators
	if len(creators) == 0 {
		creators = e.catalog.CreatorsFor(target.Category)
	}
	s := &scan{
		target:   target,
		limit:    limit,
		keywords: e.catalog.KeywordsFor(target.Category),
		seen:     map[string]bool{},
	}

	for _, creator := range creators {
		if len(s.out) >= limit {
			break
		}
		if err := e.scanCreator(ctx, s, creator); err != nil {
			zap.L().Warn("source: engagement scan aborted",
				zap.Int("prospects", len(s.out)), zap.Error(err))
			return s.out, err
		}
	}
	zap.L().Info("source: engagement scan complete",
		zap.Int("creators", len(creators)), zap.Int("prospects", len(s.out)))
	return s.out, nil
}

// fail records an Instagram failure and returns a non-nil error once the
// scan must stop.
func (e *Engagement) fail(ctx context.Context, s *scan, what string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if eris.Is(err, resilience.ErrChannelDisabled) {
		return eris.Wrap(err, "source: engagement")
	}
	s.failures++
	zap.L().Warn("source: engagement instagram failure",
		zap.String("what", what), zap.Int("consecutive", s.failures), zap.Error(err))
	if s.failures < maxConsecutiveFailures {
		return nil
	}
	cause := eris.Wrapf(err, "source: %d consecutive instagram failures", s.failures)
	e.ig.Breaker().Trip(cause)
	return cause
}

func (e *Engagement) scanCreator(ctx context.Context, s *scan, creator string) error {
	profile, err := e.ig.Profile(ctx, creator)
	if err != nil {
		return e.fail(ctx, s, "creator "+creator, err)
	}
	s.failures = 0
	if profile == nil {
		return nil
	}

	for _, post := range MarketingPosts(profile.Posts, e.catalog.MarketingKeywords, e.now()) {
		if len(s.out) >= s.limit {
			return nil
		}
		comments, err := e.ig.Comments(ctx, post.ID, commentsPerPost)
		if err != nil {
			if err := e.fail(ctx, s, "comments "+post.Shortcode, err); err != nil {
				return err
			}
			continue
		}
		s.failures = 0
		if err := e.scanComments(ctx, s, creator, post, comments); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engagement) scanComments(ctx context.Context, s *scan, creator string, post instagram.Post, comments []instagram.Comment) error {
	found := 0
	for _, c := range comments {
		if found >= prospectsPerPost || len(s.out) >= s.limit {
			return nil
		}
		username := strings.ToLower(strings.TrimSpace(c.Username))
		if strings.HasPrefix(username, "__") || len(username) < 3 || s.seen[username] {
			continue
		}
		s.seen[username] = true

		profile, err := e.ig.Profile(ctx, username)
		if err != nil {
			if err := e.fail(ctx, s, "commenter "+username, err); err != nil {
				return err
			}
			continue
		}
		s.failures = 0
		if profile == nil || profile.IsPrivate {
			continue
		}
		if !e.isLocalBusiness(profile, s) {
			continue
		}

		s.out = append(s.out, e.rawFromCommenter(profile, s.target, creator, post, c))
		found++
	}
	return nil
}

// isLocalBusiness keeps business accounts in the target category or market.
func (e *Engagement) isLocalBusiness(p *instagram.Profile, s *scan) bool {
	bio := strings.ToLower(p.Biography)
	if !p.IsBusiness && !containsAny(bio, e.catalog.BusinessSignals) {
		return false
	}
	if containsAny(bio, lowerAll(s.keywords)) {
		return true
	}
	for _, loc := range []string{s.target.City(), s.target.StateCode()} {
		if loc != "" && strings.Contains(bio, strings.ToLower(loc)) {
			return true
		}
	}
	return false
}

func (e *Engagement) rawFromCommenter(p *instagram.Profile, target Target, creator string, post instagram.Post, c instagram.Comment) model.RawProspect {
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		name = p.Username
	}
	comment := []rune(c.Text)
	if len(comment) > maxCommentDetail {
		comment = comment[:maxCommentDetail]
	}
	return model.RawProspect{
		BusinessName: name,
		Category:     target.Category,
		City:         target.City(),
		State:        target.StateCode(),
		Website:      p.ExternalURL,
		Email:        bioEmailRe.FindString(p.Biography),
		InstagramURL: normalize.InstagramURL(p.Username),
		Source:       model.SourceEngagement,
		SourceDetails: map[string]any{
			"engagement_creator":  creator,
			"engagement_post_url": post.URL(),
			"engagement_comment":  string(comment),
		},
		Social: social.Analyze(p, e.now(), e.maxPosts),
	}
}

// MarketingPosts returns up to two recent, high-engagement posts about
// marketing from the first posts of a creator.
func MarketingPosts(posts []instagram.Post, keywords []string, now time.Time) []instagram.Post {
	if len(posts) > maxPostsScanned {
		posts = posts[:maxPostsScanned]
	}
	var out []instagram.Post
	for _, p := range posts {
		if now.Sub(p.TakenAt) > marketingPostMaxAge {
			continue
		}
		if p.Comments < minPostComments && p.Likes < minPostLikes {
			continue
		}
		caption := strings.ToLower(p.Caption)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(caption, kw) {
				hits++
			}
		}
		if hits < minMarketingKeywords {
			continue
		}
		out = append(out, p)
		if len(out) == postsPerCreator {
			break
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
