package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// ErrPipelineDisabled is returned when the kill switch is off.
var ErrPipelineDisabled = eris.New("config: pipeline disabled")

// Remote setting keys.
const (
	KeyPipelineEnabled   = "pipeline_enabled"
	KeyDailyScrapeTarget = "daily_scrape_target"
	KeyLearningMode      = "learning_mode"
	KeyTargetCity        = "target_city"
	KeyTargetCategory    = "target_category"
	KeyTargetCreators    = "target_creators"
	KeyUploadEnabled     = "upload_enabled"
)

// Settings are the remotely editable values. Nil fields were not set and
// leave the static config in place.
type Settings struct {
	PipelineEnabled   *bool
	DailyScrapeTarget *int
	LearningMode      *model.LearningMode
	TargetCity        *string
	TargetCategory    *string
	TargetCreators    map[string][]string
	UploadEnabled     *bool
}

// SettingsSource fetches the current remote settings.
type SettingsSource interface {
	Fetch(ctx context.Context) (Settings, error)
}

// StoreSettings reads settings from the pipeline_settings table.
type StoreSettings struct {
	store store.Store
}

// NewStoreSettings creates a SettingsSource backed by the record store.
func NewStoreSettings(s store.Store) *StoreSettings {
	return &StoreSettings{store: s}
}

// Fetch loads and parses every known key. Malformed values are logged and
// ignored.
func (s *StoreSettings) Fetch(ctx context.Context) (Settings, error) {
	raw, err := store.LoadSettings(ctx, s.store)
	if err != nil {
		return Settings{}, eris.Wrap(err, "config: fetch settings")
	}
	return ParseSettings(raw), nil
}

// ParseSettings converts raw JSON-decoded setting values.
func ParseSettings(raw map[string]any) Settings {
	var out Settings
	log := zap.L().With(zap.String("component", "settings"))

	for key, val := range raw {
		if val == nil {
			continue
		}
		switch key {
		case KeyPipelineEnabled, KeyUploadEnabled:
			b, ok := asBool(val)
			if !ok {
				log.Warn("config: ignoring malformed setting", zap.String("key", key), zap.Any("value", val))
				continue
			}
			if key == KeyPipelineEnabled {
				out.PipelineEnabled = &b
			} else {
				out.UploadEnabled = &b
			}
		case KeyDailyScrapeTarget:
			n, ok := asInt(val)
			if !ok || n <= 0 {
				log.Warn("config: ignoring malformed setting", zap.String("key", key), zap.Any("value", val))
				continue
			}
			out.DailyScrapeTarget = &n
		case KeyLearningMode:
			m := model.LearningMode(fmt.Sprint(val))
			if !m.Valid() {
				log.Warn("config: ignoring malformed setting", zap.String("key", key), zap.Any("value", val))
				continue
			}
			out.LearningMode = &m
		case KeyTargetCity, KeyTargetCategory:
			str, ok := val.(string)
			if !ok || strings.TrimSpace(str) == "" {
				continue
			}
			if key == KeyTargetCity {
				out.TargetCity = &str
			} else {
				out.TargetCategory = &str
			}
		case KeyTargetCreators:
			out.TargetCreators = asCreators(val)
		}
	}
	return out
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(b)
		return p, err == nil
	case float64:
		return b != 0, true
	}
	return false, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		p, err := strconv.Atoi(n)
		return p, err == nil
	}
	return 0, false
}

func asCreators(v any) map[string][]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(m))
	for category, handles := range m {
		list, ok := handles.([]any)
		if !ok {
			continue
		}
		for _, h := range list {
			if s, ok := h.(string); ok && s != "" {
				out[category] = append(out[category], strings.TrimPrefix(s, "@"))
			}
		}
	}
	return out
}

// Snapshot is the effective configuration of one run: the static config with
// remote settings and CLI overrides applied.
type Snapshot struct {
	Enabled        bool
	UploadEnabled  bool
	City           string
	State          string
	Category       string
	DailyTarget    int
	LearningMode   model.LearningMode
	TargetCreators map[string][]string
}

// Overrides are command-line values that win over both config and settings.
type Overrides struct {
	City        string
	Category    string
	DailyTarget int
}

// NewSnapshot builds the run snapshot from static config.
func NewSnapshot(cfg *Config) Snapshot {
	return Snapshot{
		Enabled:       cfg.Pipeline.Enabled,
		UploadEnabled: cfg.Pipeline.UploadEnabled,
		City:          cfg.Target.City,
		State:         cfg.Target.State,
		Category:      cfg.Target.Category,
		DailyTarget:   cfg.Target.DailyTarget,
		LearningMode:  model.LearningMode(cfg.Pipeline.LearningMode),
	}
}

// Apply overlays remote settings.
func (s Snapshot) Apply(set Settings) Snapshot {
	if set.PipelineEnabled != nil {
		s.Enabled = *set.PipelineEnabled
	}
	if set.UploadEnabled != nil {
		s.UploadEnabled = *set.UploadEnabled
	}
	if set.DailyScrapeTarget != nil {
		s.DailyTarget = *set.DailyScrapeTarget
	}
	if set.LearningMode != nil {
		s.LearningMode = *set.LearningMode
	}
	if set.TargetCity != nil {
		s.City = *set.TargetCity
	}
	if set.TargetCategory != nil {
		s.Category = *set.TargetCategory
	}
	if len(set.TargetCreators) > 0 {
		s.TargetCreators = set.TargetCreators
	}
	return s
}

// Override applies non-zero command-line values.
func (s Snapshot) Override(o Overrides) Snapshot {
	if o.City != "" {
		s.City = o.City
	}
	if o.Category != "" {
		s.Category = o.Category
	}
	if o.DailyTarget > 0 {
		s.DailyTarget = o.DailyTarget
	}
	return s
}

// Map returns the run's config_snapshot column value.
func (s Snapshot) Map() map[string]any {
	return map[string]any{
		"target_city":     s.City,
		"target_category": s.Category,
		"daily_target":    s.DailyTarget,
		"learning_mode":   string(s.LearningMode),
		"upload_enabled":  s.UploadEnabled,
	}
}
