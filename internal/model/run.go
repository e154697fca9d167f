package model

import (
	"time"
)

// RunStatus represents the state of a daily pipeline run. A run is never
// recorded as failed outright.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusDisabled  RunStatus = "disabled"
	RunStatusDryRun    RunStatus = "dry_run"
)

// StepStatus represents the outcome of one pipeline step.
type StepStatus string

const (
	StepStatusComplete StepStatus = "complete"
	StepStatusFailed   StepStatus = "failed"
	StepStatusSkipped  StepStatus = "skipped"
)

// Step names in execution order.
const (
	StepScraping   = "scraping"
	StepEnrichment = "enrichment"
	StepScoring    = "scoring"
	StepInsights   = "insights"
	StepEmails     = "emails"
	StepUpload     = "upload"
	StepLearning   = "learning"
)

// StepResult holds the outcome of a pipeline step.
type StepResult struct {
	Name     string         `json:"name"`
	Status   StepStatus     `json:"status"`
	Count    int            `json:"count"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunError is one entry of a run's error list.
type RunError struct {
	Step  string `json:"step" mapstructure:"step"`
	Kind  string `json:"kind,omitempty" mapstructure:"kind"`
	Error string `json:"error" mapstructure:"error"`
}

// RunCounters are the cumulative per-step counts of a run.
type RunCounters struct {
	Scraped           int `json:"scraped" mapstructure:"prospects_scraped"`
	Enriched          int `json:"enriched" mapstructure:"prospects_enriched"`
	Scored            int `json:"scored" mapstructure:"prospects_scored"`
	InsightsGenerated int `json:"insights_generated" mapstructure:"insights_generated"`
	EmailsGenerated   int `json:"emails_generated" mapstructure:"emails_generated"`
	Uploaded          int `json:"uploaded" mapstructure:"uploaded_to_instantly"`
}

// PipelineRun is the record of one orchestrator invocation. Rows live in
// pipeline_runs and are finalized exactly once.
type PipelineRun struct {
	ID              string         `json:"id" mapstructure:"id"`
	Status          RunStatus      `json:"status" mapstructure:"status"`
	ConfigSnapshot  map[string]any `json:"config_snapshot,omitempty" mapstructure:"config_snapshot"`
	RunCounters     `mapstructure:",squash"`
	Errors          []RunError `json:"errors" mapstructure:"errors"`
	DurationSeconds int        `json:"duration_seconds" mapstructure:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at" mapstructure:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" mapstructure:"completed_at"`

	// Steps is kept in memory only; it is not persisted.
	Steps []StepResult `json:"steps,omitempty" mapstructure:"-"`
}

// FinalStatus returns completed when errs is empty, partial otherwise.
func FinalStatus(errs []RunError) RunStatus {
	if len(errs) == 0 {
		return RunStatusCompleted
	}
	return RunStatusPartial
}
