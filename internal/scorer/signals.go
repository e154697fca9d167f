package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/geospark-cli/internal/model"
)

// Per-signal caps. Each group sums to 50.
const (
	maxPosting     = 15
	maxEngagement  = 10
	maxReviewGap   = 10
	maxPlatform    = 7
	maxContent     = 8
	maxTools       = 12
	maxReviews     = 10
	maxFollowers   = 10
	maxVariance    = 10
	maxEmail       = 8
	maxGroup       = 50
	engagementBump = 15

	engagementBenchmark = 3.5
)

// Breakdown keys.
const (
	KeyInconsistentPosting = "inconsistent_posting"
	KeyLowEngagement       = "low_engagement"
	KeyReviewSocialGap     = "review_social_gap"
	KeyPartialPlatform     = "partial_platform"
	KeyGenericContent      = "generic_content"
	KeyUsingTools          = "using_tools"
	KeyReviewQuality       = "review_quality"
	KeyFollowerRange       = "follower_range"
	KeyContentQualityGap   = "content_quality_gap"
	KeyEmailConfidence     = "email_confidence"
	KeyEngagementBonus     = "engagement_bonus"
)

// ProblemKeys are the signals of unmet marketing need.
var ProblemKeys = []string{
	KeyInconsistentPosting, KeyLowEngagement, KeyReviewSocialGap,
	KeyPartialPlatform, KeyGenericContent,
}

// ReadinessKeys are the signals of ability or inclination to buy.
var ReadinessKeys = []string{
	KeyUsingTools, KeyReviewQuality, KeyFollowerRange,
	KeyContentQualityGap, KeyEmailConfidence,
}

// Signal is one sub-score with its explanation.
type Signal struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

func capped(points, limit int, reason string) Signal {
	if points > limit {
		points = limit
	}
	if points < 0 {
		points = 0
	}
	return Signal{Points: points, Reason: reason}
}

// Problem signals.

func postingConsistency(social *model.SocialProfile, d Defaults) Signal {
	if social == nil {
		return capped(d.Posting, maxPosting, "No social data available")
	}
	posts := social.PostsLast30Days
	maxGap := social.PostingPatterns().MaxGapDays

	points := 0
	var reasons []string
	switch {
	case posts == 0:
		points += 10
		reasons = append(reasons, "Zero posts in last 30 days")
	case posts < 4:
		points += 7
		reasons = append(reasons, fmt.Sprintf("Only %d posts in 30 days", posts))
	case posts < 8:
		points += 4
		reasons = append(reasons, fmt.Sprintf("%d posts in 30 days (below average)", posts))
	}
	switch {
	case maxGap > 30:
		points += 5
		reasons = append(reasons, fmt.Sprintf("%d-day posting gap", maxGap))
	case maxGap > 14:
		points += 3
		reasons = append(reasons, fmt.Sprintf("%d-day posting gap", maxGap))
	}
	return capped(points, maxPosting, joinOr(reasons, "Consistent posting"))
}

func engagement(social *model.SocialProfile, d Defaults) Signal {
	if social == nil {
		return capped(d.Engagement, maxEngagement, "No engagement data")
	}
	rate := social.EngagementRate
	switch {
	case rate <= 0:
		return capped(d.EngagementRate, maxEngagement, "No engagement data available")
	case rate < 1.0:
		return Signal{10, fmt.Sprintf("%.1f%% engagement (very low vs %.1f%% benchmark)", rate, engagementBenchmark)}
	case rate < 2.0:
		return Signal{7, fmt.Sprintf("%.1f%% engagement (below %.1f%% benchmark)", rate, engagementBenchmark)}
	case rate < engagementBenchmark:
		return Signal{4, fmt.Sprintf("%.1f%% engagement (slightly below benchmark)", rate)}
	default:
		return Signal{1, fmt.Sprintf("%.1f%% engagement (above benchmark)", rate)}
	}
}

func reviewSocialGap(p *model.Prospect, social *model.SocialProfile) Signal {
	reviews := p.GoogleReviewsCount
	posts := 0
	if social != nil {
		posts = social.PostsLast30Days
	}
	switch {
	case reviews >= 50 && posts < 4:
		return Signal{10, fmt.Sprintf("%d reviews but only %d posts/month", reviews, posts)}
	case reviews >= 20 && posts < 4:
		return Signal{7, fmt.Sprintf("%d reviews but low posting", reviews)}
	case reviews >= 20 && posts < 8:
		return Signal{4, fmt.Sprintf("Good reviews (%d), moderate posting", reviews)}
	}
	return Signal{0, "No significant gap"}
}

func platformPresence(p *model.Prospect) Signal {
	switch n := p.PlatformCount(); n {
	case 0:
		return Signal{7, "No social media presence found"}
	case 1:
		return Signal{5, "Active on only 1 platform"}
	case 2:
		return Signal{2, "Active on 2 platforms"}
	default:
		return Signal{0, fmt.Sprintf("Active on %d platforms", n)}
	}
}

func contentQuality(social *model.SocialProfile, d Defaults) Signal {
	if social == nil {
		return capped(d.Content, maxContent, "No content data")
	}
	if len(social.ContentBreakdown) == 0 {
		return capped(d.Content, maxContent, "No content classification")
	}
	promo := social.ContentBreakdown["promotional"].Pct
	switch {
	case promo > 70:
		return Signal{8, fmt.Sprintf("%.0f%% promotional content (way above 20%% ideal)", promo)}
	case promo > 50:
		return Signal{6, fmt.Sprintf("%.0f%% promotional content (above ideal)", promo)}
	case promo > 30:
		return Signal{3, fmt.Sprintf("%.0f%% promotional content", promo)}
	}
	return Signal{0, "Good content mix"}
}

// Readiness signals.

func toolUsage(social *model.SocialProfile) Signal {
	if social == nil {
		return Signal{0, "No tool data"}
	}
	if len(social.ToolsDetected) == 0 {
		return Signal{0, "No marketing tools detected"}
	}
	return capped(len(social.ToolsDetected)*4, maxTools, "Using: "+strings.Join(social.ToolsDetected, ", "))
}

func reviewQuality(p *model.Prospect) Signal {
	rating := p.GoogleRating
	count := p.GoogleReviewsCount
	switch {
	case rating >= 4.5 && count >= 50:
		return Signal{10, fmt.Sprintf("%.1f stars with %d reviews (strong reputation)", rating, count)}
	case rating >= 4.0 && count >= 20:
		return Signal{7, fmt.Sprintf("%.1f stars with %d reviews (good reputation)", rating, count)}
	case rating >= 4.0:
		return Signal{4, fmt.Sprintf("%.1f stars rating", rating)}
	case count > 0:
		return Signal{2, fmt.Sprintf("%.1f stars with %d reviews", rating, count)}
	}
	return Signal{0, "Limited review data"}
}

func followerRange(social *model.SocialProfile, d Defaults) Signal {
	if social == nil {
		return capped(d.Followers, maxFollowers, "No follower data")
	}
	f := social.Followers
	switch {
	case f >= 500 && f <= 5000:
		return Signal{10, fmt.Sprintf("%d followers (sweet spot)", f)}
	case f >= 200 && f < 500:
		return Signal{7, fmt.Sprintf("%d followers (growing)", f)}
	case f > 5000 && f <= 15000:
		return Signal{6, fmt.Sprintf("%d followers (established)", f)}
	case f > 15000:
		return Signal{2, fmt.Sprintf("%d followers (may have in-house team)", f)}
	}
	return Signal{3, fmt.Sprintf("%d followers (very early stage)", f)}
}

func contentVariance(social *model.SocialProfile) Signal {
	if social == nil {
		return Signal{0, "No content data"}
	}
	details := social.EngagementDetails()
	best, worst := details.BestEngagement, details.WorstEngagement
	if best > 0 && worst > 0 {
		ratio := best / worst
		switch {
		case ratio > 3:
			return Signal{10, fmt.Sprintf("Best content gets %.1fx more engagement than worst", ratio)}
		case ratio > 2:
			return Signal{7, fmt.Sprintf("%.1fx engagement gap between content types", ratio)}
		case ratio > 1.5:
			return Signal{4, "Moderate content performance gap"}
		}
	}
	return Signal{0, "Consistent engagement across content"}
}

func emailConfidence(p *model.Prospect) Signal {
	if p.Email() == "" {
		return Signal{0, "No email found"}
	}
	switch p.EmailConfidence {
	case model.ConfidenceHigh:
		return Signal{8, "Verified email found"}
	case model.ConfidenceMedium:
		return Signal{5, "Email found (medium confidence)"}
	}
	return Signal{3, "Email found (unverified)"}
}

func joinOr(parts []string, fallback string) string {
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "; ")
}
