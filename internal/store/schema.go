package store

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

type kind int

const (
	kText kind = iota
	kInt
	kFloat
	kBool
	kJSON
	kTime
)

type column struct {
	name string
	kind kind
}

type tableSpec struct {
	name       string
	primaryKey string
	columns    []column
	unique     [][]string
	indexes    [][]string

	kinds map[string]kind
}

func (t *tableSpec) has(col string) bool {
	_, ok := t.kinds[col]
	return ok
}

func (t *tableSpec) kindOf(col string) kind {
	return t.kinds[col]
}

var tables = map[string]*tableSpec{}

func register(t *tableSpec) {
	t.kinds = make(map[string]kind, len(t.columns))
	for _, c := range t.columns {
		t.kinds[c.name] = c.kind
	}
	tables[t.name] = t
}

func init() {
	register(&tableSpec{
		name:       TableLeads,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"business_name", kText},
			{"category", kText},
			{"city", kText},
			{"state", kText},
			{"address", kText},
			{"zip", kText},
			{"website", kText},
			{"contact_name", kText},
			{"contact_email", kText},
			{"contact_phone", kText},
			{"owner_name", kText},
			{"owner_email", kText},
			{"owner_phone", kText},
			{"email_confidence", kText},
			{"email_source", kText},
			{"instagram_url", kText},
			{"facebook_url", kText},
			{"yelp_url", kText},
			{"tiktok_url", kText},
			{"google_rating", kFloat},
			{"google_reviews_count", kInt},
			{"google_maps_url", kText},
			{"google_place_id", kText},
			{"status", kText},
			{"pipeline_status", kText},
			{"enrichment_status", kText},
			{"geospark_score", kInt},
			{"score_tier", kText},
			{"score_breakdown", kJSON},
			{"problem_score", kInt},
			{"readiness_score", kInt},
			{"prospect_source", kText},
			{"source_details", kJSON},
			{"instantly_campaign_id", kText},
			{"last_enriched_at", kTime},
			{"created_at", kTime},
			{"updated_at", kTime},
		},
		indexes: [][]string{
			{"pipeline_status", "enrichment_status"},
			{"business_name", "city"},
			{"instagram_url"},
		},
	})

	register(&tableSpec{
		name:       TableSocialProfiles,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"lead_id", kText},
			{"platform", kText},
			{"username", kText},
			{"profile_url", kText},
			{"followers", kInt},
			{"following", kInt},
			{"posts_count", kInt},
			{"bio", kText},
			{"business_category", kText},
			{"external_url", kText},
			{"is_business_account", kBool},
			{"is_private", kBool},
			{"engagement_rate", kFloat},
			{"posts_last_30_days", kInt},
			{"posting_frequency", kFloat},
			{"last_post_date", kTime},
			{"content_breakdown", kJSON},
			{"tools_detected", kJSON},
			{"rating", kFloat},
			{"review_count", kInt},
			{"price_range", kText},
			{"raw_data", kJSON},
			{"scraped_at", kTime},
			{"created_at", kTime},
			{"updated_at", kTime},
		},
		unique: [][]string{{"lead_id", "platform"}},
	})

	register(&tableSpec{
		name:       TablePosts,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"social_profile_id", kText},
			{"lead_id", kText},
			{"shortcode", kText},
			{"post_url", kText},
			{"post_date", kTime},
			{"caption", kText},
			{"likes", kInt},
			{"comments", kInt},
			{"views", kInt},
			{"post_type", kText},
			{"created_at", kTime},
		},
		indexes: [][]string{{"social_profile_id"}},
	})

	register(&tableSpec{
		name:       TableCompetitors,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"lead_id", kText},
			{"competitor_name", kText},
			{"competitor_instagram", kText},
			{"competitor_website", kText},
			{"followers", kInt},
			{"posts_per_month", kFloat},
			{"engagement_rate", kFloat},
			{"google_rating", kFloat},
			{"google_reviews_count", kInt},
			{"follower_gap", kInt},
			{"posting_gap", kFloat},
			{"engagement_gap", kFloat},
			{"analyzed_at", kTime},
		},
		indexes: [][]string{{"lead_id"}},
	})

	register(&tableSpec{
		name:       TableInsights,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"lead_id", kText},
			{"insight_type", kText},
			{"insight_title", kText},
			{"insight_description", kText},
			{"priority_score", kInt},
			{"supporting_data", kJSON},
			{"created_at", kTime},
		},
		indexes: [][]string{{"lead_id"}},
	})

	register(&tableSpec{
		name:       TableEmails,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"lead_id", kText},
			{"email_number", kInt},
			{"ab_variant", kText},
			{"send_delay_days", kInt},
			{"subject_line", kText},
			{"email_body", kText},
			{"personalization_pct", kFloat},
			{"data_points_used", kJSON},
			{"data_points_count", kInt},
			{"word_count", kInt},
			{"insight_type_used", kText},
			{"subject_pattern_used", kText},
			{"cta_style_used", kText},
			{"sent", kBool},
			{"sent_at", kTime},
			{"opened", kBool},
			{"opened_at", kTime},
			{"replied", kBool},
			{"replied_at", kTime},
			{"reply_sentiment", kText},
			{"created_at", kTime},
			{"updated_at", kTime},
		},
		unique:  [][]string{{"lead_id", "email_number", "ab_variant"}},
		indexes: [][]string{{"sent"}},
	})

	register(&tableSpec{
		name:       TableRuns,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"status", kText},
			{"config_snapshot", kJSON},
			{"prospects_scraped", kInt},
			{"prospects_enriched", kInt},
			{"prospects_scored", kInt},
			{"insights_generated", kInt},
			{"emails_generated", kInt},
			{"uploaded_to_instantly", kInt},
			{"errors", kJSON},
			{"duration_seconds", kInt},
			{"started_at", kTime},
			{"completed_at", kTime},
		},
		indexes: [][]string{{"started_at"}},
	})

	register(&tableSpec{
		name:       TableSettings,
		primaryKey: "setting_key",
		columns: []column{
			{"setting_key", kText},
			{"setting_value", kJSON},
			{"updated_at", kTime},
		},
	})

	register(&tableSpec{
		name:       TableLearnings,
		primaryKey: "id",
		columns: []column{
			{"id", kText},
			{"learning_type", kText},
			{"parameter_name", kText},
			{"current_value", kJSON},
			{"evidence", kJSON},
			{"confidence", kInt},
			{"sample_size", kInt},
			{"description", kText},
			{"status", kText},
			{"applied_at", kTime},
			{"created_at", kTime},
		},
		indexes: [][]string{{"parameter_name", "status"}},
	})
}

// lookup returns the definition of table and verifies every named column exists.
// Column names are interpolated into SQL, so unknown names are rejected.
func lookup(table string, columns ...string) (*tableSpec, error) {
	t, ok := tables[table]
	if !ok {
		return nil, eris.Errorf("store: unknown table %q", table)
	}
	for _, c := range columns {
		if !t.has(c) {
			return nil, eris.Errorf("store: unknown column %s.%s", table, c)
		}
	}
	return t, nil
}

// tableOrder fixes migration order.
var tableOrder = []string{
	TableLeads, TableSocialProfiles, TablePosts, TableCompetitors, TableInsights,
	TableEmails, TableRuns, TableSettings, TableLearnings,
}

type dialectTypes map[kind]string

var sqliteTypes = dialectTypes{
	kText:  "TEXT",
	kInt:   "INTEGER",
	kFloat: "REAL",
	kBool:  "INTEGER",
	kJSON:  "TEXT",
	kTime:  "TEXT",
}

var postgresTypes = dialectTypes{
	kText:  "TEXT",
	kInt:   "INTEGER",
	kFloat: "DOUBLE PRECISION",
	kBool:  "BOOLEAN",
	kJSON:  "JSONB",
	kTime:  "TIMESTAMPTZ",
}

// migrationSQL renders CREATE TABLE and CREATE INDEX statements for every
// table in the given dialect.
func migrationSQL(types dialectTypes) string {
	var b strings.Builder
	for _, name := range tableOrder {
		t := tables[name]
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.name)
		for i, c := range t.columns {
			fmt.Fprintf(&b, "\t%s %s", c.name, types[c.kind])
			switch {
			case c.name == t.primaryKey:
				b.WriteString(" PRIMARY KEY")
			case c.kind == kBool:
				b.WriteString(" NOT NULL DEFAULT FALSE")
			}
			if i < len(t.columns)-1 || len(t.unique) > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		for i, u := range t.unique {
			fmt.Fprintf(&b, "\tUNIQUE (%s)", strings.Join(u, ", "))
			if i < len(t.unique)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(");\n")
		for _, idx := range t.indexes {
			fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s);\n",
				t.name, strings.Join(idx, "_"), t.name, strings.Join(idx, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
