// Package store is the record store behind the pipeline. Tables are addressed
// by name and rows are plain records; typed helpers in this package decode
// them into model values.
package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
)

// Table names.
const (
	TableLeads          = "outreach_leads"
	TableSocialProfiles = "prospect_social_profiles"
	TablePosts          = "prospect_posts"
	TableCompetitors    = "prospect_competitors"
	TableInsights       = "prospect_marketing_insights"
	TableEmails         = "prospect_email_sequences"
	TableRuns           = "pipeline_runs"
	TableSettings       = "pipeline_settings"
	TableLearnings      = "pipeline_learnings"
)

// ErrNotFound is returned by typed getters when no row matches.
var ErrNotFound = eris.New("store: not found")

// Record is one row keyed by column name.
type Record map[string]any

// Filter selects rows. A nil Where matches every row.
type Filter struct {
	Where   sq.Sqlizer
	OrderBy []string
	Limit   uint64
}

// Where returns a filter matching all of the given column values. Slice
// values match with IN; nil values match IS NULL.
func Where(eq sq.Eq) Filter {
	return Filter{Where: eq}
}

// ByID returns a filter matching a single row id.
func ByID(id string) Filter {
	return Filter{Where: sq.Eq{"id": id}}
}

// Store is a generic key-indexed record store.
type Store interface {
	Select(ctx context.Context, table string, f Filter) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) (string, error)
	InsertMany(ctx context.Context, table string, recs []Record) (int64, error)
	Update(ctx context.Context, table string, f Filter, patch Record) (int64, error)
	Upsert(ctx context.Context, table string, rec Record, conflictKeys ...string) (string, error)
	UpsertMany(ctx context.Context, table string, recs []Record, conflictKeys ...string) (int64, error)
	Delete(ctx context.Context, table string, f Filter) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// NullIfEmpty maps the empty string to nil so the column is stored as NULL.
func NullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
