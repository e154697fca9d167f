package source

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/pkg/instagram"
)

var scanNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeInstagram struct {
	profiles map[string]*instagram.Profile
	comments map[string][]instagram.Comment
	errs     map[string]error
	breaker  *resilience.Breaker
	calls    []string
}

func newFakeInstagram() *fakeInstagram {
	return &fakeInstagram{
		profiles: map[string]*instagram.Profile{},
		comments: map[string][]instagram.Comment{},
		errs:     map[string]error{},
		breaker:  resilience.NewBreaker(resilience.ResourceInstagram, resilience.BreakerConfig{FailureThreshold: 10}),
	}
}

func (f *fakeInstagram) Profile(_ context.Context, username string) (*instagram.Profile, error) {
	f.calls = append(f.calls, username)
	if err := f.errs[username]; err != nil {
		return nil, err
	}
	return f.profiles[username], nil
}

func (f *fakeInstagram) Comments(_ context.Context, mediaID string, limit int) ([]instagram.Comment, error) {
	if err := f.errs["media:"+mediaID]; err != nil {
		return nil, err
	}
	c := f.comments[mediaID]
	if len(c) > limit {
		c = c[:limit]
	}
	return c, nil
}

func (f *fakeInstagram) Breaker() *resilience.Breaker { return f.breaker }

func marketingPost(id string, age time.Duration) instagram.Post {
	return instagram.Post{
		ID: id, Shortcode: "sc" + id, TakenAt: scanNow.Add(-age),
		Caption: "Your Instagram content drives bookings", Comments: 450, Likes: 1200,
	}
}

func newTestEngagement(t *testing.T, ig *fakeInstagram) *Engagement {
	t.Helper()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	e := NewEngagement(ig, catalog)
	e.now = func() time.Time { return scanNow }
	return e
}

func TestMarketingPosts(t *testing.T) {
	t.Parallel()

	keywords := []string{"instagram", "content", "bookings"}
	posts := []instagram.Post{
		marketingPost("old", 40*24*time.Hour),
		{ID: "quiet", TakenAt: scanNow, Caption: "instagram content", Comments: 10, Likes: 100},
		{ID: "offtopic", TakenAt: scanNow, Caption: "new shoes! instagram", Comments: 900},
		{ID: "likes", TakenAt: scanNow, Caption: "content and bookings", Likes: 6000},
		marketingPost("a", time.Hour),
		marketingPost("b", time.Hour),
	}
	got := MarketingPosts(posts, keywords, scanNow)
	require.Len(t, got, 2)
	assert.Equal(t, "likes", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestMarketingPosts_OnlyFirstTwentyScanned(t *testing.T) {
	t.Parallel()

	posts := make([]instagram.Post, 25)
	for i := range posts {
		posts[i] = instagram.Post{ID: "filler", TakenAt: scanNow}
	}
	posts[22] = marketingPost("late", time.Hour)
	assert.Empty(t, MarketingPosts(posts, []string{"instagram", "content"}, scanNow))
}

func TestEngagement_Scrape(t *testing.T) {
	t.Parallel()

	ig := newFakeInstagram()
	ig.profiles["salontoday"] = &instagram.Profile{Username: "salontoday", Posts: []instagram.Post{marketingPost("m1", time.Hour)}}
	ig.comments["m1"] = []instagram.Comment{
		{Username: "glowstudio", Text: "So true for our salon!"},
		{Username: "__bot"},
		{Username: "ab"},
		{Username: "privatehair"},
		{Username: "hobbyist"},
		{Username: "nycbarber"},
		{Username: "glowstudio", Text: "again"},
	}
	ig.profiles["glowstudio"] = &instagram.Profile{
		Username: "glowstudio", FullName: "Glow Studio", IsBusiness: true,
		Biography: "Denver hair studio. Bookings: dana@glowstudio.com", ExternalURL: "https://glowstudio.com",
		Followers: 1500,
	}
	ig.profiles["privatehair"] = &instagram.Profile{Username: "privatehair", IsPrivate: true, IsBusiness: true, Biography: "hair"}
	ig.profiles["hobbyist"] = &instagram.Profile{Username: "hobbyist", Biography: "I love hair"}
	ig.profiles["nycbarber"] = &instagram.Profile{Username: "nycbarber", Biography: "📍 NYC barber"}

	raws, err := newTestEngagement(t, ig).Scrape(context.Background(), Target{
		Location: "Denver, CO", Category: "Hair Salon", Creators: []string{"salontoday"},
	}, 10)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	glow := raws[0]
	assert.Equal(t, "Glow Studio", glow.BusinessName)
	assert.Equal(t, "dana@glowstudio.com", glow.Email)
	assert.Equal(t, "https://glowstudio.com", glow.Website)
	assert.Equal(t, "https://instagram.com/glowstudio", glow.InstagramURL)
	assert.Equal(t, model.SourceEngagement, glow.Source)
	assert.Equal(t, "salontoday", glow.SourceDetails["engagement_creator"])
	assert.Equal(t, "https://instagram.com/p/scm1", glow.SourceDetails["engagement_post_url"])
	require.NotNil(t, glow.Social)
	assert.Equal(t, 1500, glow.Social.Followers)

	assert.Equal(t, "nycbarber", raws[1].BusinessName, "business signal and category keyword qualify")

	for _, c := range ig.calls {
		assert.False(t, strings.HasPrefix(c, "__"))
		assert.NotEqual(t, "ab", c)
	}
}

func TestEngagement_ConsecutiveFailuresDisableChannel(t *testing.T) {
	t.Parallel()

	ig := newFakeInstagram()
	ig.profiles["salontoday"] = &instagram.Profile{Username: "salontoday", Posts: []instagram.Post{marketingPost("m1", time.Hour)}}
	ig.comments["m1"] = []instagram.Comment{{Username: "first"}, {Username: "second"}, {Username: "third"}}
	ig.errs["first"] = resilience.NewTransientError(eris.New("timeout"), 0)
	ig.errs["second"] = resilience.NewTransientError(eris.New("timeout"), 0)

	_, err := newTestEngagement(t, ig).Scrape(context.Background(), Target{
		Location: "Denver, CO", Category: "Hair Salon", Creators: []string{"salontoday"},
	}, 10)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "abort keeps the last failure as its cause")
	assert.False(t, resilience.IsRateLimited(err))
	assert.True(t, ig.breaker.Open())
	assert.NotContains(t, ig.calls, "third")
}

func TestEngagement_AbortKeepsFoundProspects(t *testing.T) {
	t.Parallel()

	ig := newFakeInstagram()
	ig.profiles["salontoday"] = &instagram.Profile{Username: "salontoday", Posts: []instagram.Post{marketingPost("m1", time.Hour)}}
	ig.comments["m1"] = []instagram.Comment{{Username: "glowstudio"}, {Username: "first"}, {Username: "second"}}
	ig.profiles["glowstudio"] = &instagram.Profile{
		Username: "glowstudio", FullName: "Glow Studio", IsBusiness: true, Biography: "Denver hair studio",
	}
	ig.errs["first"] = resilience.NewTransientError(eris.New("timeout"), 0)
	ig.errs["second"] = resilience.NewTransientError(eris.New("timeout"), 0)

	raws, err := newTestEngagement(t, ig).Scrape(context.Background(), Target{
		Location: "Denver, CO", Category: "Hair Salon", Creators: []string{"salontoday"},
	}, 10)
	require.Error(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Glow Studio", raws[0].BusinessName)
	assert.True(t, ig.breaker.Open())
}

func TestEngagement_AbortOnRateLimitStaysRateLimited(t *testing.T) {
	t.Parallel()

	ig := newFakeInstagram()
	ig.errs["gone1"] = resilience.RateLimitedf("instagram: 429")
	ig.errs["gone2"] = resilience.RateLimitedf("instagram: 429")

	_, err := newTestEngagement(t, ig).Scrape(context.Background(), Target{
		Location: "Denver, CO", Category: "Hair Salon", Creators: []string{"gone1", "gone2"},
	}, 10)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
	assert.True(t, ig.breaker.Open())
}

func TestEngagement_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	ig := newFakeInstagram()
	ig.errs["gone1"] = resilience.NewTransientError(eris.New("timeout"), 0)
	ig.profiles["salontoday"] = &instagram.Profile{Username: "salontoday"}
	ig.errs["gone2"] = resilience.NewTransientError(eris.New("timeout"), 0)

	raws, err := newTestEngagement(t, ig).Scrape(context.Background(), Target{
		Location: "Denver, CO", Category: "Hair Salon", Creators: []string{"gone1", "salontoday", "gone2"},
	}, 10)
	require.NoError(t, err)
	assert.Empty(t, raws)
	assert.False(t, ig.breaker.Open())
}

func TestEngagement_DisabledChannel(t *testing.T) {
	t.Parallel()

	ig := newFakeInstagram()
	ig.breaker.Trip(resilience.RateLimitedf("instagram: 429"))

	_, err := newTestEngagement(t, ig).Scrape(context.Background(), denver, 10)
	require.ErrorIs(t, err, resilience.ErrChannelDisabled)
	assert.Empty(t, ig.calls)
}
