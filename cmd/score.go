package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/scorer"
	"github.com/sells-group/geospark-cli/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score <lead-id>",
	Short: "Recompute one prospect's score",
	Long: `Recompute the GeoSpark score of a stored prospect from its current
data and Instagram profile, and print the per-signal breakdown.

Examples:
  # Preview the score
  geospark score 3f2b9c1e-...

  # Persist it and advance the prospect to scored
  geospark score 3f2b9c1e-... --save`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(config.ModeScore); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := store.GetProspect(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "score")
		}

		sc := newScorer()
		save, _ := cmd.Flags().GetBool("save")

		var res scorer.Result
		if save {
			res, err = sc.ScoreAndSave(ctx, st, lead)
		} else {
			var profile *model.SocialProfile
			profile, err = store.GetSocialProfile(ctx, st, lead.ID, model.PlatformInstagram)
			res = sc.Score(lead, profile)
		}
		if err != nil {
			return eris.Wrap(err, "score")
		}

		formatScore(os.Stdout, lead, res)
		return nil
	},
}

func init() {
	scoreCmd.Flags().Bool("save", false, "persist the score and tier")
	rootCmd.AddCommand(scoreCmd)
}

// formatScore writes the score header and one line per signal, highest
// contribution first.
func formatScore(out io.Writer, lead *model.Prospect, res scorer.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Business:\t%s\n", lead.BusinessName)
	_, _ = fmt.Fprintf(w, "Score:\t%d\n", res.Score)
	_, _ = fmt.Fprintf(w, "Tier:\t%s\n", res.Tier)
	_, _ = fmt.Fprintf(w, "Problem:\t%d\n", res.ProblemScore)
	_, _ = fmt.Fprintf(w, "Readiness:\t%d\n", res.ReadinessScore)
	_, _ = fmt.Fprintln(w)

	keys := make([]string, 0, len(res.Breakdown))
	for k := range res.Breakdown {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := res.Breakdown[keys[i]].Points, res.Breakdown[keys[j]].Points
		if pi != pj {
			return pi > pj
		}
		return keys[i] < keys[j]
	})

	_, _ = fmt.Fprintln(w, "SIGNAL\tPOINTS\tREASON")
	for _, k := range keys {
		s := res.Breakdown[k]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", k, s.Points, s.Reason)
	}
	_ = w.Flush()
}
