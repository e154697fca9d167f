package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/model"
)

func socialRecord(p *model.SocialProfile) Record {
	rec := Record{
		"lead_id":             p.LeadID,
		"platform":            string(p.Platform),
		"username":            NullIfEmpty(p.Username),
		"profile_url":         NullIfEmpty(p.ProfileURL),
		"followers":           p.Followers,
		"following":           p.Following,
		"posts_count":         p.PostsCount,
		"bio":                 NullIfEmpty(p.Bio),
		"business_category":   NullIfEmpty(p.BusinessCategory),
		"external_url":        NullIfEmpty(p.ExternalURL),
		"is_business_account": p.IsBusiness,
		"is_private":          p.IsPrivate,
		"engagement_rate":     p.EngagementRate,
		"posts_last_30_days":  p.PostsLast30Days,
		"posting_frequency":   p.PostingFrequency,
		"last_post_date":      p.LastPostDate,
		"content_breakdown":   p.ContentBreakdown,
		"tools_detected":      p.ToolsDetected,
		"rating":              p.Rating,
		"review_count":        p.ReviewCount,
		"price_range":         NullIfEmpty(p.PriceRange),
		"raw_data":            p.RawData,
	}
	if !p.ScrapedAt.IsZero() {
		rec["scraped_at"] = p.ScrapedAt
	}
	return rec
}

// SaveSocialProfile upserts the profile on (lead_id, platform) so that
// re-running enrichment converges on a single row. The stored row id is
// written back to p.ID.
func SaveSocialProfile(ctx context.Context, s Store, p *model.SocialProfile) (string, error) {
	if p.LeadID == "" || p.Platform == "" {
		return "", eris.New("store: social profile needs lead_id and platform")
	}
	id, err := s.Upsert(ctx, TableSocialProfiles, socialRecord(p), "lead_id", "platform")
	if err != nil {
		return "", eris.Wrapf(err, "store: save %s profile for lead %s", p.Platform, p.LeadID)
	}
	p.ID = id
	return id, nil
}

// GetSocialProfile returns the lead's profile on platform, or nil.
func GetSocialProfile(ctx context.Context, s Store, leadID string, platform model.Platform) (*model.SocialProfile, error) {
	recs, err := s.Select(ctx, TableSocialProfiles, Filter{
		Where: sq.Eq{"lead_id": leadID, "platform": string(platform)},
		Limit: 1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: get %s profile for lead %s", platform, leadID)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	p, err := Decode[model.SocialProfile](recs[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListSocialProfiles returns every platform profile stored for a lead.
func ListSocialProfiles(ctx context.Context, s Store, leadID string) ([]model.SocialProfile, error) {
	recs, err := s.Select(ctx, TableSocialProfiles, Where(sq.Eq{"lead_id": leadID}))
	if err != nil {
		return nil, eris.Wrapf(err, "store: list profiles for lead %s", leadID)
	}
	return DecodeAll[model.SocialProfile](recs)
}

// ReplacePosts swaps the stored post sample of a profile for posts.
func ReplacePosts(ctx context.Context, s Store, profileID, leadID string, posts []model.Post) (int64, error) {
	if _, err := s.Delete(ctx, TablePosts, Where(sq.Eq{"social_profile_id": profileID})); err != nil {
		return 0, eris.Wrapf(err, "store: clear posts for profile %s", profileID)
	}
	if len(posts) == 0 {
		return 0, nil
	}
	recs := make([]Record, len(posts))
	for i, p := range posts {
		recs[i] = Record{
			"social_profile_id": profileID,
			"lead_id":           leadID,
			"shortcode":         NullIfEmpty(p.Shortcode),
			"post_url":          p.PostURL,
			"post_date":         p.PostDate,
			"caption":           NullIfEmpty(p.Caption),
			"likes":             p.Likes,
			"comments":          p.Comments,
			"views":             p.Views,
			"post_type":         p.PostType,
		}
	}
	n, err := s.InsertMany(ctx, TablePosts, recs)
	if err != nil {
		return 0, eris.Wrapf(err, "store: insert posts for profile %s", profileID)
	}
	return n, nil
}

// ListPosts returns a profile's stored posts, newest first.
func ListPosts(ctx context.Context, s Store, profileID string) ([]model.Post, error) {
	recs, err := s.Select(ctx, TablePosts, Filter{
		Where:   sq.Eq{"social_profile_id": profileID},
		OrderBy: []string{"post_date DESC"},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: list posts for profile %s", profileID)
	}
	return DecodeAll[model.Post](recs)
}
