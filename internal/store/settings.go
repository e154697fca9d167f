package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/model"
)

// LoadSettings returns every remote pipeline setting keyed by name. Values
// are JSON-decoded.
func LoadSettings(ctx context.Context, s Store) (map[string]any, error) {
	recs, err := s.Select(ctx, TableSettings, Filter{})
	if err != nil {
		return nil, eris.Wrap(err, "store: load settings")
	}
	out := make(map[string]any, len(recs))
	for _, r := range recs {
		key, _ := r["setting_key"].(string)
		if key != "" {
			out[key] = r["setting_value"]
		}
	}
	return out, nil
}

// PutSetting creates or replaces one remote setting.
func PutSetting(ctx context.Context, s Store, key string, value any) error {
	_, err := s.Upsert(ctx, TableSettings, Record{
		"setting_key":   key,
		"setting_value": value,
	}, "setting_key")
	return eris.Wrapf(err, "store: put setting %s", key)
}

// SaveRecommendation stores a learning recommendation.
func SaveRecommendation(ctx context.Context, s Store, rec *model.Recommendation) (string, error) {
	status := rec.Status
	if status == "" {
		status = model.LearningRecommended
	}
	id, err := s.Insert(ctx, TableLearnings, Record{
		"learning_type":  rec.LearningType,
		"parameter_name": rec.ParameterName,
		"current_value":  rec.CurrentValue,
		"evidence":       rec.Evidence,
		"confidence":     rec.Confidence,
		"sample_size":    rec.SampleSize,
		"description":    NullIfEmpty(rec.Description),
		"status":         string(status),
		"applied_at":     rec.AppliedAt,
	})
	if err != nil {
		return "", eris.Wrapf(err, "store: save learning %s", rec.ParameterName)
	}
	rec.ID = id
	rec.Status = status
	return id, nil
}

// ApplyRecommendations marks every pending recommendation for a parameter as
// applied.
func ApplyRecommendations(ctx context.Context, s Store, parameterName string, at time.Time) (int64, error) {
	n, err := s.Update(ctx, TableLearnings, Where(sq.Eq{
		"parameter_name": parameterName,
		"status":         string(model.LearningRecommended),
	}), Record{
		"status":     string(model.LearningApplied),
		"applied_at": at,
	})
	return n, eris.Wrapf(err, "store: apply learning %s", parameterName)
}

// ListRecommendations returns stored recommendations, newest first. An empty
// status matches all.
func ListRecommendations(ctx context.Context, s Store, status model.LearningStatus, limit uint64) ([]model.Recommendation, error) {
	f := Filter{OrderBy: []string{"created_at DESC"}, Limit: limit}
	if status != "" {
		f.Where = sq.Eq{"status": string(status)}
	}
	recs, err := s.Select(ctx, TableLearnings, f)
	if err != nil {
		return nil, eris.Wrap(err, "store: list learnings")
	}
	return DecodeAll[model.Recommendation](recs)
}
