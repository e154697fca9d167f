// Package outreach uploads prospects and their email sequences to the
// cold-email sending tool.
package outreach

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/store"
	"github.com/sells-group/geospark-cli/pkg/instantly"
)

// DefaultBatch is the number of prospects uploaded per run.
const DefaultBatch = 50

// Sending window of new campaigns.
const (
	scheduleFrom = "09:00"
	scheduleTo   = "17:00"
)

// CampaignName returns the daily campaign name for a market.
func CampaignName(category, city string, day time.Time) string {
	return fmt.Sprintf("GeoSpark — %s — %s — %s", category, city, day.Format("2006-01-02"))
}

// Result tallies one upload batch.
type Result struct {
	CampaignID string `json:"campaign_id,omitempty"`
	Uploaded   int    `json:"uploaded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// Uploader creates campaigns and adds leads through the Instantly limiter.
type Uploader struct {
	client   instantly.Client
	limiter  *resilience.Limiter
	retry    resilience.RetryConfig
	timezone string
	batch    int
	now      func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithBatch sets the per-run upload limit.
func WithBatch(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.batch = n
		}
	}
}

// WithClock sets the clock used for campaign names.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

// NewUploader creates an uploader. timezone is the sending schedule zone.
func NewUploader(client instantly.Client, limiters *resilience.Limiters, retry resilience.RetryConfig, timezone string, opts ...Option) *Uploader {
	if timezone == "" {
		timezone = "America/Denver"
	}
	u := &Uploader{
		client:   client,
		limiter:  limiters.Get(resilience.ResourceInstantly),
		retry:    retry,
		timezone: timezone,
		batch:    DefaultBatch,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Uploader) retryFor(op string) resilience.RetryConfig {
	r := u.retry
	r.OnRetry = resilience.RetryLogger("instantly", op)
	return r
}

// CampaignID returns the id of the campaign with the given name, creating it
// with a weekday schedule when it does not exist.
func (u *Uploader) CampaignID(ctx context.Context, name string) (string, error) {
	found, err := resilience.DoVal(ctx, u.retryFor("find_campaign"), func(ctx context.Context) (*instantly.Campaign, error) {
		return resilience.CallVal(ctx, u.limiter, func(ctx context.Context) (*instantly.Campaign, error) {
			return u.client.FindCampaign(ctx, name)
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "outreach: find campaign %q", name)
	}
	if found != nil {
		return found.ID, nil
	}

	created, err := resilience.DoVal(ctx, u.retryFor("create_campaign"), func(ctx context.Context) (*instantly.Campaign, error) {
		return resilience.CallVal(ctx, u.limiter, func(ctx context.Context) (*instantly.Campaign, error) {
			return u.client.CreateCampaign(ctx, instantly.CreateCampaignRequest{
				Name:             name,
				CampaignSchedule: instantly.WeekdaySchedule("Default", scheduleFrom, scheduleTo, u.timezone),
			})
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "outreach: create campaign %q", name)
	}
	zap.L().Info("outreach: created campaign", zap.String("name", name), zap.String("campaign_id", created.ID))
	return created.ID, nil
}

// Lead builds the Instantly lead for a prospect. Each email of the sequence
// is exposed to the campaign templates as email_N_subject and email_N_body.
func Lead(campaignID string, p *model.Prospect, sequence []model.EmailSequenceEntry) instantly.Lead {
	vars := map[string]string{
		"business_name":  p.BusinessName,
		"city":           p.City,
		"category":       p.Category,
		"geospark_score": strconv.Itoa(p.GeosparkScore),
		"score_tier":     string(p.ScoreTier),
	}
	for _, e := range sequence {
		if e.ABVariant != "" && e.ABVariant != model.DefaultVariant {
			continue
		}
		vars[fmt.Sprintf("email_%d_subject", e.EmailNumber)] = e.SubjectLine
		vars[fmt.Sprintf("email_%d_body", e.EmailNumber)] = e.Body
	}
	return instantly.Lead{
		Campaign:        campaignID,
		Email:           p.Email(),
		FirstName:       firstName(p),
		CompanyName:     p.BusinessName,
		Website:         p.Website,
		Phone:           p.ContactPhone,
		CustomVariables: vars,
	}
}

func firstName(p *model.Prospect) string {
	for _, name := range []string{p.OwnerName, p.ContactName} {
		if fields := strings.Fields(name); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// UploadLead adds one prospect and its sequence to a campaign. It reports
// false without calling the API when the prospect has no email.
func (u *Uploader) UploadLead(ctx context.Context, campaignID string, p *model.Prospect, sequence []model.EmailSequenceEntry) (bool, error) {
	if p.Email() == "" {
		return false, nil
	}
	lead := Lead(campaignID, p, sequence)
	_, err := resilience.DoVal(ctx, u.retryFor("add_lead"), func(ctx context.Context) (*instantly.Lead, error) {
		return resilience.CallVal(ctx, u.limiter, func(ctx context.Context) (*instantly.Lead, error) {
			return u.client.AddLead(ctx, lead)
		})
	})
	if err != nil {
		return false, eris.Wrapf(err, "outreach: add lead %s", p.ID)
	}
	return true, nil
}

// Upload sends up to the batch size of emails_generated prospects to the
// day's campaign for the market. Uploaded prospects move to
// uploaded_to_instantly and status contacted. A rate-limited response stops
// the batch.
func (u *Uploader) Upload(ctx context.Context, st store.Store, category, city string) (Result, error) {
	var res Result
	leads, err := store.ListProspects(ctx, st, store.Filter{
		Where: sq.Eq{"pipeline_status": string(model.PipelineEmailsGenerated)},
		Limit: uint64(u.batch),
	})
	if err != nil {
		return res, eris.Wrap(err, "outreach: select prospects")
	}
	if len(leads) == 0 {
		return res, nil
	}

	res.CampaignID, err = u.CampaignID(ctx, CampaignName(category, city, u.now()))
	if err != nil {
		return res, err
	}

	for i := range leads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p := &leads[i]
		log := zap.L().With(zap.String("lead_id", p.ID), zap.String("business", p.BusinessName))
		if p.Email() == "" {
			res.Skipped++
			continue
		}

		sequence, err := store.ListEmails(ctx, st, p.ID)
		if err != nil {
			log.Warn("outreach: load sequence failed", zap.Error(err))
			res.Failed++
			continue
		}

		ok, err := u.UploadLead(ctx, res.CampaignID, p, sequence)
		if err != nil {
			res.Failed++
			if resilience.IsRateLimited(err) {
				log.Warn("outreach: rate limited, stopping upload", zap.Error(err))
				return res, err
			}
			log.Warn("outreach: upload failed", zap.Error(err))
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}

		if err := store.UpdateProspect(ctx, st, p.ID, store.Record{
			"pipeline_status":       string(model.PipelineUploaded),
			"status":                string(model.LeadContacted),
			"instantly_campaign_id": res.CampaignID,
		}); err != nil {
			log.Warn("outreach: mark uploaded failed", zap.Error(err))
		}
		res.Uploaded++
	}

	zap.L().Info("outreach: upload complete",
		zap.String("campaign_id", res.CampaignID),
		zap.Int("uploaded", res.Uploaded),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
