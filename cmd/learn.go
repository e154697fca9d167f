package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Analyze outreach outcomes",
	Long:  "Commands for reviewing email performance, optimization recommendations, and acquisition channel quality.",
}

// -- learn report --

var learnReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print email performance across every sent email",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		perf, err := newLearner(st, model.LearningPassive).Performance(ctx)
		if err != nil {
			return eris.Wrap(err, "learn report")
		}
		return writeIndented(os.Stdout, perf)
	},
}

// -- learn recommend --

var learnRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Compute or list optimization recommendations",
	Long: `Without flags, computes recommendations from current performance
without storing them. --stored lists recommendations saved by earlier runs.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var recs []model.Recommendation
		if stored, _ := cmd.Flags().GetBool("stored"); stored {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetUint64("limit")
			recs, err = store.ListRecommendations(ctx, st, model.LearningStatus(status), limit)
		} else {
			recs, err = newLearner(st, model.LearningActive).Recommend(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "learn recommend")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No recommendations.")
			return nil
		}
		formatRecommendations(os.Stdout, recs)
		return nil
	},
}

// -- learn sources --

var learnSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Compare acquisition channels by score and outcome",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := newLearner(st, model.LearningPassive).Sources(ctx)
		if err != nil {
			return eris.Wrap(err, "learn sources")
		}
		formatSources(os.Stdout, stats)
		return nil
	},
}

func init() {
	learnRecommendCmd.Flags().Bool("stored", false, "list stored recommendations instead of computing new ones")
	learnRecommendCmd.Flags().String("status", "", "filter stored recommendations by status (recommended, applied)")
	learnRecommendCmd.Flags().Uint64("limit", 20, "max stored recommendations to list")

	learnCmd.AddCommand(learnReportCmd)
	learnCmd.AddCommand(learnRecommendCmd)
	learnCmd.AddCommand(learnSourcesCmd)
	rootCmd.AddCommand(learnCmd)
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatRecommendations writes recommendations, most confident first.
func formatRecommendations(out io.Writer, recs []model.Recommendation) {
	sorted := append([]model.Recommendation(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PARAMETER\tCONFIDENCE\tSAMPLES\tSTATUS\tDESCRIPTION")
	for _, r := range sorted {
		status := string(r.Status)
		if status == "" {
			status = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", r.ParameterName, r.Confidence, r.SampleSize, status, r.Description)
	}
	_ = w.Flush()
}

// formatSources writes one row per acquisition channel in name order.
func formatSources(out io.Writer, stats map[string]*model.SourceStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tTOTAL\tAVG_SCORE\tTOP_TIER\tCONTACTED\tREPLIED\tCONVERTED\tREPLY_RATE")
	for _, name := range names {
		s := stats[name]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f%%\t%d\t%d\t%d\t%.1f%%\n",
			name, s.Total, s.AvgScore, s.TopTierShare, s.Contacted, s.Replied, s.Converted, s.ReplyRate)
	}
	_ = w.Flush()
}
