// Package social fetches Instagram profiles through the run's rate limiter,
// retry policy and channel breaker, analyzes them and stores the results.
package social

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/store"
	"github.com/sells-group/geospark-cli/pkg/instagram"
)

// DefaultMaxPosts is the number of recent posts analyzed per profile.
const DefaultMaxPosts = 50

// Service is the Instagram channel of a run.
type Service struct {
	client   instagram.Client
	limiter  *resilience.Limiter
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
	maxPosts int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxPosts caps the posts analyzed per profile.
func WithMaxPosts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPosts = n
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the Instagram channel. Calls share the instagram
// limiter and breaker with every other Instagram consumer of the run.
func NewService(client instagram.Client, limiters *resilience.Limiters, breakers *resilience.Breakers, retry resilience.RetryConfig, opts ...Option) *Service {
	retry.OnRetry = resilience.RetryLogger("instagram", "profile")
	s := &Service{
		client:   client,
		limiter:  limiters.Get(resilience.ResourceInstagram),
		breaker:  breakers.Get(resilience.ResourceInstagram),
		retry:    retry,
		maxPosts: DefaultMaxPosts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Disabled reports whether the channel has been disabled for this run.
func (s *Service) Disabled() bool { return s.breaker.Open() }

// Breaker returns the channel breaker.
func (s *Service) Breaker() *resilience.Breaker { return s.breaker }

// Profile fetches a raw profile. A missing account returns nil without error.
func (s *Service) Profile(ctx context.Context, username string) (*instagram.Profile, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*instagram.Profile, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*instagram.Profile, error) {
			return resilience.CallVal(ctx, s.limiter, func(ctx context.Context) (*instagram.Profile, error) {
				return s.client.Profile(ctx, username)
			})
		})
	})
}

// Comments fetches up to limit comments on a post.
func (s *Service) Comments(ctx context.Context, mediaID string, limit int) ([]instagram.Comment, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]instagram.Comment, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]instagram.Comment, error) {
			return resilience.CallVal(ctx, s.limiter, func(ctx context.Context) ([]instagram.Comment, error) {
				return s.client.Comments(ctx, mediaID, limit)
			})
		})
	})
}

// Fetch returns the analyzed profile for a handle, or nil when the account
// does not exist.
func (s *Service) Fetch(ctx context.Context, handle string) (*model.SocialProfile, error) {
	p, err := s.Profile(ctx, handle)
	if err != nil {
		return nil, eris.Wrapf(err, "social: fetch @%s", handle)
	}
	if p == nil {
		zap.L().Info("social: profile not found", zap.String("handle", handle))
		return nil, nil
	}
	return Analyze(p, s.now(), s.maxPosts), nil
}

// Save upserts the profile for a lead and replaces its stored posts.
func Save(ctx context.Context, st store.Store, leadID string, profile *model.SocialProfile) (string, error) {
	profile.LeadID = leadID
	id, err := store.SaveSocialProfile(ctx, st, profile)
	if err != nil {
		return "", err
	}
	if profile.Platform == model.PlatformInstagram && !profile.IsPrivate {
		if _, err := store.ReplacePosts(ctx, st, id, leadID, profile.Posts); err != nil {
			return id, err
		}
	}
	zap.L().Debug("social: saved profile",
		zap.String("lead_id", leadID),
		zap.String("platform", string(profile.Platform)),
		zap.Int("posts", len(profile.Posts)),
	)
	return id, nil
}
