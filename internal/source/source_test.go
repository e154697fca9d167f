package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/store"
	"github.com/sells-group/geospark-cli/internal/store/storetest"
	"github.com/sells-group/geospark-cli/pkg/outscraper"
)

var (
	denver    = Target{Location: "Denver, CO", Category: "Hair Salon"}
	fastRetry = resilience.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond}
)

func TestTarget_Location(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Denver", denver.City())
	assert.Equal(t, "CO", denver.StateCode())

	bare := Target{Location: "Boulder", State: "Colorado"}
	assert.Equal(t, "Boulder", bare.City())
	assert.Equal(t, "Colorado", bare.StateCode())
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Len(t, c.DirectoriesFor("hair salon"), 2)
	assert.Nil(t, c.DirectoriesFor("Plumber"))
	assert.Equal(t, []string{"restaurantmarketing", "restaurantowner", "toabornottoab"}, c.CreatorsFor("Restaurant"))
	assert.Equal(t, []string{"smallbizmarketingtips", "localmarketingtips", "socialmediaexaminer"}, c.CreatorsFor("Plumber"))
	assert.Len(t, c.MarketingKeywords, 20)
	assert.Contains(t, c.BusinessSignals, "dm to book")
	assert.Contains(t, c.AwardSkipWords, "top ")
}

func TestLoadCatalog_Override(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  creators:
    Hair Salon: [mysaloncoach]
  marketing_keywords: [clients, bookings]
`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"mysaloncoach"}, c.CreatorsFor("Hair Salon"))
	assert.Equal(t, []string{"restaurantmarketing", "restaurantowner", "toabornottoab"}, c.CreatorsFor("Restaurant"))
	assert.Equal(t, []string{"clients", "bookings"}, c.MarketingKeywords)
	assert.NotEmpty(t, c.BusinessSignals)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

type mockMaps struct {
	mock.Mock
}

func (m *mockMaps) MapsSearch(ctx context.Context, query string, limit int, opts ...outscraper.SearchOption) ([]outscraper.Place, error) {
	args := m.Called(ctx, query, limit)
	places, _ := args.Get(0).([]outscraper.Place)
	return places, args.Error(1)
}

func TestMaps_Scrape(t *testing.T) {
	t.Parallel()

	client := &mockMaps{}
	client.On("MapsSearch", mock.Anything, "Hair Salon in Denver, CO", 2).Return([]outscraper.Place{
		{
			Name: " Glow Studio ", Site: "https://glowstudio.com", Email1: "dana@glowstudio.com",
			Phone: "+1 303-555-0100", ContactName: "Dana", FullAddress: "1 Main St, Denver, CO",
			PostalCode: "80202", Rating: 4.7, Reviews: 88, PlaceID: "p1",
			SocialMedia: outscraper.SocialLinks{"https://instagram.com/glowstudio", "https://www.yelp.com/biz/glow", "https://instagram.com/dupe"},
			Facebook:    "https://facebook.com/glow",
		},
		{Name: ""},
		{Name: "Shear Joy"},
	}, nil)

	raws, err := NewMaps(client, resilience.NewLimiters(nil, 0), fastRetry).Scrape(context.Background(), denver, 2)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	glow := raws[0]
	assert.Equal(t, "Glow Studio", glow.BusinessName)
	assert.Equal(t, "Denver", glow.City)
	assert.Equal(t, "CO", glow.State)
	assert.Equal(t, "dana@glowstudio.com", glow.Email)
	assert.Equal(t, "Dana", glow.OwnerName)
	assert.Equal(t, 88, glow.ReviewsCount)
	assert.Equal(t, "https://instagram.com/glowstudio", glow.InstagramURL)
	assert.Equal(t, "https://facebook.com/glow", glow.FacebookURL)
	assert.Equal(t, "https://www.yelp.com/biz/glow", glow.YelpURL)
	assert.Equal(t, model.SourceOutscraper, glow.Source)
	assert.Equal(t, "Shear Joy", raws[1].BusinessName)
}

func TestMaps_ScrapeRetriesTransient(t *testing.T) {
	t.Parallel()

	client := &mockMaps{}
	client.On("MapsSearch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(eris.New("502"), 502)).Once()
	client.On("MapsSearch", mock.Anything, mock.Anything, mock.Anything).
		Return([]outscraper.Place{{Name: "Glow"}}, nil).Once()

	raws, err := NewMaps(client, resilience.NewLimiters(nil, 0), fastRetry).Scrape(context.Background(), denver, 5)
	require.NoError(t, err)
	assert.Len(t, raws, 1)
	client.AssertNumberOfCalls(t, "MapsSearch", 2)
}

func TestMaps_ZeroLimit(t *testing.T) {
	t.Parallel()
	client := &mockMaps{}
	raws, err := NewMaps(client, resilience.NewLimiters(nil, 0), fastRetry).Scrape(context.Background(), denver, 0)
	require.NoError(t, err)
	assert.Empty(t, raws)
	client.AssertNotCalled(t, "MapsSearch", mock.Anything, mock.Anything, mock.Anything)
}

func TestSave_DedupsOnNameAndCity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := storetest.New(t)
	storetest.InsertProspect(t, st, storetest.Prospect("Glow Studio", "Denver"))

	res, err := Save(ctx, st, []model.RawProspect{
		{BusinessName: "Glow Studio", City: "Denver", Source: model.SourceOutscraper},
		{BusinessName: "Glow Studio", City: "Boulder", Source: model.SourceOutscraper},
		{BusinessName: "Shear Joy", City: "Denver", Email: "Hi@ShearJoy.com", Phone: "(303) 555-0199", Source: model.SourceOutscraper},
		{BusinessName: "  ", City: "Denver"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SaveResult{Saved: 2, Skipped: 2}, res)

	p, err := store.FindProspectByNameCity(ctx, st, "Shear Joy", "Denver")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.LeadNew, p.Status)
	assert.Equal(t, model.PipelineScraped, p.PipelineStatus)
	assert.Equal(t, model.EnrichmentPending, p.EnrichmentStatus)
	assert.Equal(t, model.SourceOutscraper, p.ProspectSource)
	assert.Equal(t, "hi@shearjoy.com", p.ContactEmail)
	assert.Equal(t, model.ConfidenceHigh, p.EmailConfidence)
	assert.Equal(t, "3035550199", p.ContactPhone)
}

func TestSave_EngagementMatchesInstagramFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := storetest.New(t)
	known := storetest.Prospect("Glow Studio", "Denver")
	known.InstagramURL = "https://instagram.com/glowstudio"
	storetest.InsertProspect(t, st, known)

	res, err := Save(ctx, st, []model.RawProspect{
		{BusinessName: "Glow by Dana", City: "Denver", InstagramURL: "https://instagram.com/glowstudio", Source: model.SourceEngagement},
		{
			BusinessName: "Shear Joy", City: "Denver", InstagramURL: "https://instagram.com/shearjoy",
			Source:        model.SourceEngagement,
			SourceDetails: map[string]any{"engagement_creator": "salontoday"},
			Social:        &model.SocialProfile{Platform: model.PlatformInstagram, Username: "shearjoy", Followers: 900},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SaveResult{Saved: 1, Skipped: 1}, res)

	p, err := store.FindProspectByInstagram(ctx, st, "https://instagram.com/shearjoy")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.SourceEngagement, p.ProspectSource)
	assert.Equal(t, "salontoday", p.SourceDetails["engagement_creator"])

	prof, err := store.GetSocialProfile(ctx, st, p.ID, model.PlatformInstagram)
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, 900, prof.Followers)
}

func TestSave_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Save(ctx, storetest.New(t), []model.RawProspect{{BusinessName: "Glow", City: "Denver"}})
	require.ErrorIs(t, err, context.Canceled)
}
