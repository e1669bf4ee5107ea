package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/signalnine/benchwatch/internal/config"
	"github.com/signalnine/benchwatch/internal/runner"
	"github.com/signalnine/benchwatch/internal/sandbox"
	"github.com/signalnine/benchwatch/internal/task"
	"github.com/signalnine/benchwatch/internal/workspace"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check dataset integrity",
		Long: "Install each task's canonical reference solution as the artifact and " +
			"run the hidden tests against it in the sandbox. A task whose reference " +
			"solution fails its own tests is broken and would poison every run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			suite, err := task.LoadSuite(cfg.Dataset)
			if err != nil {
				return err
			}

			prov := &workspace.DirProvisioner{Root: cfg.Workspace.Dir, Keep: cfg.Workspace.Keep}
			tests := &sandbox.DockerRunner{
				Image:   cfg.Sandbox.Image,
				Timeout: time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
			}
			ctx := context.Background()

			var mu sync.Mutex
			var broken []string
			jobs := make([]runner.Job, len(suite.Tasks))
			for i := range suite.Tasks {
				t := &suite.Tasks[i]
				jobs[i] = func() {
					if err := validateTask(ctx, prov, tests, t); err != nil {
						log.Printf("%s: %v", t.TaskID, err)
						mu.Lock()
						broken = append(broken, t.TaskID)
						mu.Unlock()
						return
					}
					fmt.Printf("  %s: ok\n", t.TaskID)
				}
			}
			runner.RunPool(cfg.Parallel, jobs)

			if len(broken) > 0 {
				return fmt.Errorf("%d of %d tasks have failing reference solutions: %v",
					len(broken), len(suite.Tasks), broken)
			}
			fmt.Printf("All %d reference solutions pass their hidden tests\n", len(suite.Tasks))
			return nil
		},
	}
	return cmd
}

func validateTask(ctx context.Context, prov *workspace.DirProvisioner, tests *sandbox.DockerRunner, t *task.Task) error {
	ws, err := prov.Provision(t, 1)
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}
	defer prov.Cleanup(ws)
	defer prov.CleanupTask(t)

	if err := os.WriteFile(ws.ArtifactPath, []byte(t.ReferenceSolution()), 0o644); err != nil {
		return fmt.Errorf("installing reference solution: %w", err)
	}
	out, err := tests.Run(ctx, ws)
	if err != nil {
		return fmt.Errorf("running hidden tests: %w", err)
	}
	if !out.Passed {
		return fmt.Errorf("reference solution failed (%s)", out.FailureKind)
	}
	return nil
}
