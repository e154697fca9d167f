package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing, viewing, and summarizing daily pipeline runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetUint64("limit")
		runs, err := store.ListRuns(ctx, st, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := store.GetRun(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetUint64("limit")
		runs, err := store.ListRuns(ctx, st, limit)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().Uint64("limit", 20, "max number of runs to display")
	runsStatsCmd.Flags().Uint64("limit", 30, "number of most recent runs to aggregate")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Completed  int
	Partial    int
	Running    int
	Totals     model.RunCounters
	Errors     map[string]int
	AvgDurSecs float64
}

// computeRunStats aggregates counters over finished runs and counts step
// errors by kind.
func computeRunStats(runs []model.PipelineRun) runStats {
	s := runStats{Total: len(runs), Errors: make(map[string]int)}

	var totalDur, finished int
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
		case model.RunStatusPartial:
			s.Partial++
		default:
			s.Running++
			continue
		}
		finished++
		totalDur += r.DurationSeconds

		s.Totals.Scraped += r.Scraped
		s.Totals.Enriched += r.Enriched
		s.Totals.Scored += r.Scored
		s.Totals.InsightsGenerated += r.InsightsGenerated
		s.Totals.EmailsGenerated += r.EmailsGenerated
		s.Totals.Uploaded += r.Uploaded

		for _, e := range r.Errors {
			kind := e.Kind
			if kind == "" {
				kind = "other"
			}
			s.Errors[kind]++
		}
	}

	if finished > 0 {
		s.AvgDurSecs = float64(totalDur) / float64(finished)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.PipelineRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMARKET\tSTATUS\tSCRAPED\tSCORED\tEMAILS\tUPLOADED\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t------\t------\t--------\t------\t-------\t--------")

	for _, r := range runs {
		market := runMarket(r)
		if len(market) > 30 {
			market = market[:27] + "..."
		}

		dur := "-"
		if r.CompletedAt != nil {
			dur = (time.Duration(r.DurationSeconds) * time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			market,
			r.Status,
			r.Scraped,
			r.Scored,
			r.EmailsGenerated,
			r.Uploaded,
			len(r.Errors),
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// runMarket renders "category / city" from the run's config snapshot.
func runMarket(r model.PipelineRun) string {
	category, _ := r.ConfigSnapshot["target_category"].(string)
	city, _ := r.ConfigSnapshot["target_city"].(string)
	switch {
	case category != "" && city != "":
		return category + " / " + city
	case city != "":
		return city
	default:
		return category
	}
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Partial:\t%d\n", s.Partial)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Scraped:\t%d\n", s.Totals.Scraped)
	_, _ = fmt.Fprintf(w, "Enriched:\t%d\n", s.Totals.Enriched)
	_, _ = fmt.Fprintf(w, "Scored:\t%d\n", s.Totals.Scored)
	_, _ = fmt.Fprintf(w, "Insights:\t%d\n", s.Totals.InsightsGenerated)
	_, _ = fmt.Fprintf(w, "Emails:\t%d\n", s.Totals.EmailsGenerated)
	_, _ = fmt.Fprintf(w, "Uploaded:\t%d\n", s.Totals.Uploaded)
	for _, kind := range []string{"transport", "rate_limited", "parse", "disabled", "other"} {
		if n := s.Errors[kind]; n > 0 {
			_, _ = fmt.Fprintf(w, "  Errors (%s):\t%d\n", kind, n)
		}
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
