package cmd

import (
	"os"

	"github.com/signalnine/benchwatch/internal/config"
	"github.com/signalnine/benchwatch/internal/report"
	"github.com/signalnine/benchwatch/internal/result"
	"github.com/spf13/cobra"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the latest snapshot and run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			store := result.NewStore(cfg.Data.Dir)
			return report.Generate(store, flagFormat, cfg.Trend.Window, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
