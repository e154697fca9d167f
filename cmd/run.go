package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/cost"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/pipeline"
)

// errPartialRun makes the process exit non-zero after a run finished with
// step errors.
var errPartialRun = eris.New("run finished with errors")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the daily pipeline",
	Long: `Scrape, enrich, score, write outreach and upload for one market.

Flags override the remote pipeline settings, which override config.yaml.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, _ := cmd.Flags().GetInt("target")
		category, _ := cmd.Flags().GetString("category")
		city, _ := cmd.Flags().GetString("city")
		scrapeOnly, _ := cmd.Flags().GetBool("scrape-only")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		overrides := config.Overrides{City: city, Category: category, DailyTarget: target}
		mode := pipeline.Mode{DryRun: dryRun, ScrapeOnly: scrapeOnly}

		// A dry run reads the static config only: no keys, store or APIs.
		if dryRun {
			run := pipeline.DryRun(config.NewSnapshot(cfg).Override(overrides), mode)
			printRunSummary(cmd.OutOrStdout(), run, cost.NewTracker(cost.DefaultRates()))
			return nil
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if err := cfg.Validate(config.ModeRun); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, costs, err := buildPipeline(st)
		if err != nil {
			return err
		}

		run, err := p.Run(ctx, config.NewSnapshot(cfg), overrides, mode)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		printRunSummary(cmd.OutOrStdout(), run, costs)
		if run.ID != "" {
			if _, err := newChecker(st).Check(ctx, costs.Total()); err != nil {
				zap.L().Warn("run: health check failed", zap.Error(err))
			}
		}
		if run.Status == model.RunStatusPartial {
			zap.L().Warn("run: finished with step errors", zap.Int("errors", len(run.Errors)))
			return errPartialRun
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.Int("target", 0, "daily scrape target (overrides settings)")
	f.String("category", "", "business category, e.g. \"Hair Salon\"")
	f.String("city", "", "target market, e.g. \"Denver, CO\"")
	f.Bool("scrape-only", false, "stop after acquisition")
	f.Bool("dry-run", false, "log the plan without writing anything")

	rootCmd.AddCommand(runCmd)
}

// runSummary is the JSON printed after a run.
type runSummary struct {
	*model.PipelineRun
	CostUSD   float64            `json:"cost_usd"`
	CostSplit map[string]float64 `json:"cost_by_provider,omitempty"`
}

func printRunSummary(out io.Writer, run *model.PipelineRun, costs *cost.Tracker) {
	spend, _ := costs.Breakdown()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runSummary{PipelineRun: run, CostUSD: costs.Total(), CostSplit: spend}); err != nil {
		fmt.Fprintln(os.Stderr, "encode run summary:", err)
	}
}
