package cmd

import (
	"fmt"

	"github.com/signalnine/benchwatch/internal/config"
	"github.com/signalnine/benchwatch/internal/task"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks in the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			suite, err := task.LoadSuite(cfg.Dataset)
			if err != nil {
				return err
			}
			fmt.Printf("Suite: %s (%d tasks)\n", suite.SuiteName, len(suite.Tasks))
			for _, t := range suite.Tasks {
				fmt.Printf("  - %s (%s)\n", t.TaskID, t.EntryPoint)
			}
			return nil
		},
	}
}
