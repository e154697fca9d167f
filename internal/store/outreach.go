package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/model"
)

// InsertCompetitors stores competitor snapshots for a lead.
func InsertCompetitors(ctx context.Context, s Store, leadID string, comps []model.Competitor) (int64, error) {
	if len(comps) == 0 {
		return 0, nil
	}
	recs := make([]Record, len(comps))
	for i, c := range comps {
		analyzed := c.AnalyzedAt
		if analyzed.IsZero() {
			analyzed = time.Now().UTC()
		}
		recs[i] = Record{
			"lead_id":              leadID,
			"competitor_name":      c.CompetitorName,
			"competitor_instagram": NullIfEmpty(c.CompetitorInstagram),
			"competitor_website":   NullIfEmpty(c.CompetitorWebsite),
			"followers":            c.Followers,
			"posts_per_month":      c.PostsPerMonth,
			"engagement_rate":      c.EngagementRate,
			"google_rating":        c.GoogleRating,
			"google_reviews_count": c.GoogleReviewsCount,
			"follower_gap":         c.FollowerGap,
			"posting_gap":          c.PostingGap,
			"engagement_gap":       c.EngagementGap,
			"analyzed_at":          analyzed,
		}
	}
	n, err := s.InsertMany(ctx, TableCompetitors, recs)
	return n, eris.Wrapf(err, "store: insert competitors for lead %s", leadID)
}

// ListCompetitors returns the competitor snapshots of a lead.
func ListCompetitors(ctx context.Context, s Store, leadID string) ([]model.Competitor, error) {
	recs, err := s.Select(ctx, TableCompetitors, Where(sq.Eq{"lead_id": leadID}))
	if err != nil {
		return nil, eris.Wrapf(err, "store: list competitors for lead %s", leadID)
	}
	return DecodeAll[model.Competitor](recs)
}

// InsertInsights stores generated insights for a lead.
func InsertInsights(ctx context.Context, s Store, leadID string, insights []model.Insight) (int64, error) {
	if len(insights) == 0 {
		return 0, nil
	}
	recs := make([]Record, len(insights))
	for i, in := range insights {
		recs[i] = Record{
			"lead_id":             leadID,
			"insight_type":        string(in.InsightType),
			"insight_title":       in.Title,
			"insight_description": in.Description,
			"priority_score":      in.PriorityScore,
			"supporting_data":     in.SupportingData,
		}
	}
	n, err := s.InsertMany(ctx, TableInsights, recs)
	return n, eris.Wrapf(err, "store: insert insights for lead %s", leadID)
}

// ListInsights returns a lead's insights, highest priority first.
func ListInsights(ctx context.Context, s Store, leadID string) ([]model.Insight, error) {
	recs, err := s.Select(ctx, TableInsights, Filter{
		Where:   sq.Eq{"lead_id": leadID},
		OrderBy: []string{"priority_score DESC"},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: list insights for lead %s", leadID)
	}
	return DecodeAll[model.Insight](recs)
}

func emailRecord(leadID string, e model.EmailSequenceEntry) Record {
	variant := e.ABVariant
	if variant == "" {
		variant = model.DefaultVariant
	}
	return Record{
		"lead_id":              leadID,
		"email_number":         e.EmailNumber,
		"ab_variant":           variant,
		"send_delay_days":      e.SendDelayDays,
		"subject_line":         e.SubjectLine,
		"email_body":           e.Body,
		"personalization_pct":  e.PersonalizationPct,
		"data_points_used":     e.DataPointsUsed,
		"data_points_count":    e.DataPointsCount,
		"word_count":           e.WordCount,
		"insight_type_used":    NullIfEmpty(e.InsightTypeUsed),
		"subject_pattern_used": NullIfEmpty(e.SubjectPatternUsed),
		"cta_style_used":       NullIfEmpty(e.CTAStyleUsed),
	}
}

// SaveEmailSequence upserts a lead's emails on (lead_id, email_number,
// ab_variant). Outcome flags of existing rows are left untouched.
func SaveEmailSequence(ctx context.Context, s Store, leadID string, entries []model.EmailSequenceEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	recs := make([]Record, len(entries))
	for i, e := range entries {
		recs[i] = emailRecord(leadID, e)
	}
	n, err := s.UpsertMany(ctx, TableEmails, recs, "lead_id", "email_number", "ab_variant")
	return n, eris.Wrapf(err, "store: save email sequence for lead %s", leadID)
}

// ListEmails returns a lead's sequence ordered by email number.
func ListEmails(ctx context.Context, s Store, leadID string) ([]model.EmailSequenceEntry, error) {
	recs, err := s.Select(ctx, TableEmails, Filter{
		Where:   sq.Eq{"lead_id": leadID},
		OrderBy: []string{"email_number ASC"},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: list emails for lead %s", leadID)
	}
	return DecodeAll[model.EmailSequenceEntry](recs)
}

// ListSentEmails returns every email that has been sent.
func ListSentEmails(ctx context.Context, s Store) ([]model.EmailSequenceEntry, error) {
	recs, err := s.Select(ctx, TableEmails, Where(sq.Eq{"sent": true}))
	if err != nil {
		return nil, eris.Wrap(err, "store: list sent emails")
	}
	return DecodeAll[model.EmailSequenceEntry](recs)
}

// UpdateEmail applies patch to every variant of one email of a lead.
func UpdateEmail(ctx context.Context, s Store, leadID string, emailNumber int, patch Record) (int64, error) {
	n, err := s.Update(ctx, TableEmails, Where(sq.Eq{"lead_id": leadID, "email_number": emailNumber}), patch)
	return n, eris.Wrapf(err, "store: update email %d for lead %s", emailNumber, leadID)
}
