// Package storetest provides a migrated temp-dir SQLite store for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// New returns an empty, migrated SQLite store closed at test cleanup.
func New(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// Prospect returns a freshly scraped prospect for name and city.
func Prospect(name, city string) *model.Prospect {
	return &model.Prospect{
		BusinessName:     name,
		Category:         "Hair Salon",
		City:             city,
		State:            "CO",
		Status:           model.LeadNew,
		PipelineStatus:   model.PipelineScraped,
		EnrichmentStatus: model.EnrichmentPending,
		ProspectSource:   model.SourceOutscraper,
	}
}

// InsertProspect stores p and fails the test on error.
func InsertProspect(t *testing.T, s store.Store, p *model.Prospect) *model.Prospect {
	t.Helper()
	_, err := store.InsertProspect(context.Background(), s, p)
	require.NoError(t, err)
	return p
}
