package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/signalnine/benchwatch/internal/agent"
	"github.com/signalnine/benchwatch/internal/attempt"
	"github.com/signalnine/benchwatch/internal/config"
	"github.com/signalnine/benchwatch/internal/pricing"
	"github.com/signalnine/benchwatch/internal/report"
	"github.com/signalnine/benchwatch/internal/result"
	"github.com/signalnine/benchwatch/internal/runner"
	"github.com/signalnine/benchwatch/internal/sandbox"
	"github.com/signalnine/benchwatch/internal/task"
	"github.com/signalnine/benchwatch/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	flagTask           string
	flagParallel       int
	flagMaxAttempts    int
	flagKeepWorkspaces bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark run and update history",
		Long: "Run every task in the dataset through the agent under turn and cost " +
			"ceilings, score the results against the hidden tests, and persist a run " +
			"snapshot plus a history row. Exits non-zero only on infrastructure " +
			"failure; a low score is a valid result.",
		RunE: runBenchmark,
	}
	cmd.Flags().StringVar(&flagTask, "task", "", "filter to a single task id")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "override max concurrent tasks")
	cmd.Flags().IntVar(&flagMaxAttempts, "max-attempts", 0, "override attempt budget per task")
	cmd.Flags().BoolVar(&flagKeepWorkspaces, "keep-workspaces", false, "keep attempt workspaces for debugging")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagParallel > 0 {
		cfg.Parallel = flagParallel
	}
	if flagMaxAttempts > 0 {
		cfg.Attempts.Max = flagMaxAttempts
	}
	if flagKeepWorkspaces {
		cfg.Workspace.Keep = true
	}

	if cfg.Secrets.EnvFile != "" {
		// godotenv never overrides variables already set in the
		// environment.
		if err := godotenv.Load(cfg.Secrets.EnvFile); err != nil {
			return fmt.Errorf("loading secrets: %w", err)
		}
	}

	suite, err := task.LoadSuite(cfg.Dataset)
	if err != nil {
		return err
	}
	if flagTask != "" {
		filtered := filterTasks(suite.Tasks, flagTask)
		if len(filtered) == 0 {
			return fmt.Errorf("no task matches %q", flagTask)
		}
		suite = &task.Suite{SuiteName: suite.SuiteName, Tasks: filtered}
	}
	fmt.Printf("Loaded %d tasks from %s\n", len(suite.Tasks), cfg.Dataset)

	var table *pricing.Table
	if cfg.Agent.PricingFile != "" {
		table, err = pricing.Load(cfg.Agent.PricingFile)
		if err != nil {
			log.Printf("warning: loading pricing table: %v", err)
		}
	}

	invoker := &agent.CLIInvoker{
		Command:        cfg.Agent.Command,
		Timeout:        time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		PermissionMode: cfg.Agent.PermissionMode,
	}
	ctx := context.Background()

	ctrl := &attempt.Controller{
		Provisioner: &workspace.DirProvisioner{Root: cfg.Workspace.Dir, Keep: cfg.Workspace.Keep},
		Invoker:     invoker,
		Tests: &sandbox.DockerRunner{
			Image:   cfg.Sandbox.Image,
			Timeout: time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		},
		MaxAttempts:       cfg.Attempts.Max,
		ChargeInfraErrors: cfg.Attempts.ChargeInfra(),
		InfraRetryLimit:   cfg.Attempts.InfraRetryLimit,
		MaxTurns:          cfg.Agent.MaxTurns,
		MaxBudgetUSD:      cfg.Agent.MaxBudgetUSD,
		DisallowedTools:   cfg.Agent.DisallowedTools,
	}

	store := result.NewStore(cfg.Data.Dir)
	if _, err := runner.Run(ctx, &runner.Options{
		Suite:        suite,
		Controller:   ctrl,
		Store:        store,
		Pricing:      table,
		Parallel:     cfg.Parallel,
		AgentVersion: invoker.Version(ctx),
	}); err != nil {
		return err
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(store, "table", cfg.Trend.Window, os.Stdout)
}

func filterTasks(tasks []task.Task, id string) []task.Task {
	var filtered []task.Task
	for _, t := range tasks {
		if t.TaskID == id || t.DirName() == id {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
