package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/pkg/instagram"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }

func TestEngagement(t *testing.T) {
	t.Parallel()

	posts := []model.Post{
		{Likes: 90, Comments: 10, PostType: "video"},
		{Likes: 20, Comments: 0, PostType: "photo"},
		{Likes: 30, Comments: 10, PostType: "photo"},
	}
	e := Engagement(posts, 1000)

	// avg likes 46.67, avg comments 6.67 => 5.333%
	assert.InDelta(t, 5.333, e.AvgEngagementRate, 1e-9)
	assert.InDelta(t, 46.7, e.AvgLikes, 1e-9)
	assert.InDelta(t, 6.7, e.AvgComments, 1e-9)
	assert.InDelta(t, 10.0, e.EngagementByType["video"], 1e-9)
	assert.InDelta(t, 3.0, e.EngagementByType["photo"], 1e-9)
	assert.Equal(t, "video", e.BestPostType)
	assert.Equal(t, "photo", e.WorstPostType)
	assert.InDelta(t, 10.0, e.BestEngagement, 1e-9)
	assert.InDelta(t, 3.0, e.WorstEngagement, 1e-9)
}

func TestEngagement_NoData(t *testing.T) {
	t.Parallel()
	assert.Equal(t, model.EngagementDetails{}, Engagement(nil, 100))
	assert.Equal(t, model.EngagementDetails{}, Engagement([]model.Post{{Likes: 3}}, 0))
}

func TestPostingPatterns(t *testing.T) {
	t.Parallel()

	posts := []model.Post{
		{PostDate: daysAgo(2)},
		{PostDate: daysAgo(10)},
		{PostDate: daysAgo(40)},
		{PostDate: daysAgo(62)},
	}
	pp := PostingPatterns(posts, now)

	assert.Equal(t, 2, pp.PostsLast30Days)
	// 4 posts over 60 days
	assert.InDelta(t, 2.0, pp.PostsPerMonth, 1e-9)
	assert.Equal(t, 30, pp.MaxGapDays)
	assert.InDelta(t, 20.0, pp.AvgGapDays, 1e-9)
	assert.Equal(t, 2, pp.DaysSinceLastPost)
	require.NotNil(t, pp.LastPostDate)
	assert.Equal(t, daysAgo(2), *pp.LastPostDate)
	assert.Equal(t, 4, pp.TotalPostsAnalyzed)
}

func TestPostingPatterns_SinglePost(t *testing.T) {
	t.Parallel()

	pp := PostingPatterns([]model.Post{{PostDate: daysAgo(5)}}, now)
	assert.Equal(t, 1, pp.PostsLast30Days)
	assert.InDelta(t, 1.0, pp.PostsPerMonth, 1e-9)
	assert.Zero(t, pp.MaxGapDays)
	assert.Zero(t, pp.AvgGapDays)
}

func TestPostingPatterns_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, model.PostingPatterns{}, PostingPatterns(nil, now))
}

func TestClassifyContent(t *testing.T) {
	t.Parallel()

	posts := []model.Post{
		{Caption: "Before and after with a client favorite"}, // before_after wins over testimonial
		{Caption: "Thank you for the kind words!"},
		{Caption: "Book now: 20% off color"},
		{Caption: "Book now for spring"},
		{Caption: "Sunset"},
	}
	c := ClassifyContent(posts)

	assert.Equal(t, 1, c[ContentBeforeAfter].Count)
	assert.Equal(t, 1, c[ContentTestimonial].Count)
	assert.Equal(t, 2, c[ContentPromotional].Count)
	assert.InDelta(t, 40.0, c[ContentPromotional].Pct, 1e-9)
	assert.Equal(t, 1, c[ContentOther].Count)
	assert.Zero(t, c[ContentEducational].Count)
}

func TestDetectTools(t *testing.T) {
	t.Parallel()

	tools := DetectTools("Book via linktr.ee/glow | vagaro", []model.Post{{Caption: "Made with Canva"}})
	assert.Equal(t, []string{"linktree", "canva", "vagaro"}, tools)
	assert.Empty(t, DetectTools("just a salon", nil))
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	p := &instagram.Profile{
		Username:    "glowstudio",
		Followers:   1000,
		MediaCount:  3,
		Biography:   "Denver salon",
		ExternalURL: "https://linktr.ee/glow",
		IsBusiness:  true,
		Posts: []instagram.Post{
			{Shortcode: "a", TakenAt: daysAgo(1), Likes: 40, Comments: 10, Caption: "Book now"},
			{Shortcode: "b", TakenAt: daysAgo(8), Likes: 20, Comments: 0, IsVideo: true},
			{Shortcode: "c", TakenAt: daysAgo(50), Likes: 10},
		},
	}
	sp := Analyze(p, now, 2)

	assert.Equal(t, model.PlatformInstagram, sp.Platform)
	assert.Equal(t, "https://instagram.com/glowstudio", sp.ProfileURL)
	require.Len(t, sp.Posts, 2, "capped to max posts")
	assert.Equal(t, "https://instagram.com/p/a", sp.Posts[0].PostURL)
	assert.Equal(t, "video", sp.Posts[1].PostType)
	assert.Equal(t, 2, sp.PostsLast30Days)
	assert.InDelta(t, 3.5, sp.EngagementRate, 1e-9)
	assert.Equal(t, []string{"linktree"}, sp.ToolsDetected)
	require.NotNil(t, sp.RawData.PostingPatterns)
	require.NotNil(t, sp.RawData.EngagementDetails)
	assert.Equal(t, 1, sp.ContentBreakdown[ContentPromotional].Count)
}

func TestAnalyze_PrivateProfile(t *testing.T) {
	t.Parallel()

	sp := Analyze(&instagram.Profile{
		Username:  "secret",
		Followers: 800,
		IsPrivate: true,
		Posts:     []instagram.Post{{Shortcode: "x", TakenAt: daysAgo(1)}},
	}, now, 50)

	assert.True(t, sp.IsPrivate)
	assert.Equal(t, 800, sp.Followers)
	assert.Empty(t, sp.Posts)
	assert.Nil(t, sp.RawData.PostingPatterns)
	assert.Zero(t, sp.EngagementRate)
}
