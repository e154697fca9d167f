package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/model"
)

// CreateRun records the start of a pipeline run.
func CreateRun(ctx context.Context, s Store, snapshot map[string]any) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		Status:         model.RunStatusRunning,
		ConfigSnapshot: snapshot,
		StartedAt:      time.Now().UTC(),
	}
	id, err := s.Insert(ctx, TableRuns, Record{
		"status":          string(run.Status),
		"config_snapshot": snapshot,
		"started_at":      run.StartedAt,
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: create run")
	}
	run.ID = id
	return run, nil
}

// FinishRun writes the final status, counters, errors and duration of a run.
func FinishRun(ctx context.Context, s Store, run *model.PipelineRun) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	errs := run.Errors
	if errs == nil {
		errs = []model.RunError{}
	}
	n, err := s.Update(ctx, TableRuns, ByID(run.ID), Record{
		"status":                string(run.Status),
		"prospects_scraped":     run.Scraped,
		"prospects_enriched":    run.Enriched,
		"prospects_scored":      run.Scored,
		"insights_generated":    run.InsightsGenerated,
		"emails_generated":      run.EmailsGenerated,
		"uploaded_to_instantly": run.Uploaded,
		"errors":                errs,
		"duration_seconds":      run.DurationSeconds,
		"completed_at":          run.CompletedAt,
	})
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", run.ID)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

// GetRun returns one pipeline run or ErrNotFound.
func GetRun(ctx context.Context, s Store, id string) (*model.PipelineRun, error) {
	recs, err := s.Select(ctx, TableRuns, Filter{Where: sq.Eq{"id": id}, Limit: 1})
	if err != nil {
		return nil, eris.Wrapf(err, "store: get run %s", id)
	}
	if len(recs) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	run, err := Decode[model.PipelineRun](recs[0])
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func ListRuns(ctx context.Context, s Store, limit uint64) ([]model.PipelineRun, error) {
	recs, err := s.Select(ctx, TableRuns, Filter{
		OrderBy: []string{"started_at DESC"},
		Limit:   limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	return DecodeAll[model.PipelineRun](recs)
}
