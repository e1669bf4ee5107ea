package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "benchwatch",
		Short: "Recurring benchmark harness with regression tracking for coding agents",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "benchwatch.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newTrendCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newValidateCmd())
	return root
}
