package cmd

import (
	"fmt"

	"github.com/signalnine/benchwatch/internal/config"
	"github.com/signalnine/benchwatch/internal/result"
	"github.com/signalnine/benchwatch/internal/trend"
	"github.com/spf13/cobra"
)

var (
	flagWindow           int
	flagFailOnRegression bool
)

func newTrendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Classify the latest run against the rolling history window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			window := cfg.Trend.Window
			if flagWindow > 0 {
				window = flagWindow
			}

			store := result.NewStore(cfg.Data.Dir)
			hist, err := store.ReadHistory()
			if err != nil {
				return err
			}
			if len(hist.Entries) == 0 {
				return fmt.Errorf("no runs recorded in %s", cfg.Data.Dir)
			}

			latest := hist.Entries[len(hist.Entries)-1]
			verdict := trend.Classify(latest.RunID, latest.Score, hist, window)

			fmt.Printf("Latest run: %s  score %.1f (%d/%d)\n", latest.RunID, latest.Score, latest.Passed, latest.Total)
			switch verdict.Label {
			case trend.Unknown:
				fmt.Println("Trend: UNKNOWN (no prior runs to compare against)")
			default:
				fmt.Printf("Trend: %s (baseline %.1f over %d prior runs, delta %+.1f)\n",
					verdict.Label, verdict.Baseline, verdict.Window, verdict.Delta)
			}

			if flagFailOnRegression && verdict.Label == trend.Regressed {
				return fmt.Errorf("score regressed by %.1f points against the baseline", -verdict.Delta)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flagWindow, "window", 0, "override comparison window size")
	cmd.Flags().BoolVar(&flagFailOnRegression, "fail-on-regression", false, "exit non-zero when the verdict is REGRESSED")
	return cmd
}
