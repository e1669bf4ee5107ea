// Package runner aggregates a full benchmark run: it drives every
// task's attempt controller, computes the run score, and persists the
// snapshot, latest pointer, and history row.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/signalnine/benchwatch/internal/attempt"
	"github.com/signalnine/benchwatch/internal/pricing"
	"github.com/signalnine/benchwatch/internal/result"
	"github.com/signalnine/benchwatch/internal/task"
)

type Options struct {
	Suite      *task.Suite
	Controller *attempt.Controller
	Store      *result.Store
	// Pricing estimates attempt cost from token usage when the agent
	// CLI reported usage but no cost. Optional.
	Pricing      *pricing.Table
	Parallel     int
	AgentVersion string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Run executes every task in the suite and persists exactly one
// snapshot and one history update. Task failures are results, not
// errors; only dataset-independent infrastructure faults (persistence)
// produce a non-nil error, and even then the partial snapshot is
// flushed to stdout so a consumer can render a degraded state.
func Run(ctx context.Context, opts *Options) (*result.RunSnapshot, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	startedAt := now().UTC()
	runID := result.NewRunID(startedAt)
	tasks := opts.Suite.Tasks
	fmt.Printf("Run %s: %d tasks\n", runID, len(tasks))

	results := make([]result.TaskResult, len(tasks))
	jobs := make([]Job, len(tasks))
	for i := range tasks {
		i := i
		jobs[i] = func() {
			t := &tasks[i]
			fmt.Printf("[%d/%d] %s (%s)\n", i+1, len(tasks), t.TaskID, t.EntryPoint)
			results[i] = *opts.Controller.RunTask(ctx, t)
			status := "FAILED"
			if results[i].Passed {
				status = "passed"
			}
			fmt.Printf("  %s: %s (attempts: %d)\n", t.TaskID, status, results[i].AttemptsUsed)
		}
	}
	RunPool(opts.Parallel, jobs)

	finishedAt := now().UTC()
	snap := BuildSnapshot(runID, opts.Suite.SuiteName, opts.AgentVersion, startedAt, finishedAt, results, opts.Pricing)

	if err := persist(opts.Store, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// BuildSnapshot assembles the immutable run record from per-task
// results.
func BuildSnapshot(runID, suite, agentVersion string, startedAt, finishedAt time.Time, results []result.TaskResult, table *pricing.Table) *result.RunSnapshot {
	passed := 0
	var totalCost float64
	var totalDurationMS int64
	merged := map[string]result.ModelUsage{}

	for i := range results {
		r := &results[i]
		if r.Passed {
			passed++
		}
		if r.TotalCostUSDTotal == 0 && len(r.ModelUsage) > 0 {
			r.TotalCostUSDTotal = table.Estimate(r.ModelUsage)
		}
		totalCost += r.TotalCostUSDTotal
		totalDurationMS += r.DurationMSTotal
		for model, u := range r.ModelUsage {
			m := merged[model]
			m.InputTokens += u.InputTokens
			m.OutputTokens += u.OutputTokens
			merged[model] = m
		}
	}

	return &result.RunSnapshot{
		RunID:           runID,
		Date:            startedAt.Format("2006-01-02"),
		Suite:           suite,
		Score:           result.Score(passed, len(results)),
		Passed:          passed,
		Total:           len(results),
		TotalCostUSD:    totalCost,
		TotalDurationMS: totalDurationMS,
		PrimaryModel:    primaryModel(merged),
		AgentVersion:    agentVersion,
		ModelUsage:      merged,
		StartedAt:       startedAt.Format(time.RFC3339),
		FinishedAt:      finishedAt.Format(time.RFC3339),
		Tasks:           results,
	}
}

// primaryModel picks the model that consumed the most tokens.
func primaryModel(usage map[string]result.ModelUsage) string {
	primary := "unknown"
	best := -1
	for model, u := range usage {
		total := u.InputTokens + u.OutputTokens
		if total > best || (total == best && model < primary) {
			primary = model
			best = total
		}
	}
	return primary
}

func persist(store *result.Store, snap *result.RunSnapshot) error {
	if err := store.WriteSnapshot(snap); err != nil {
		flushPartial(snap)
		return fmt.Errorf("persisting snapshot: %w", err)
	}
	if err := store.UpsertHistory(snap.Summary()); err != nil {
		flushPartial(snap)
		return fmt.Errorf("updating history: %w", err)
	}
	return nil
}

// flushPartial dumps the snapshot to stdout when storage is unwritable,
// so the results of a finished run are never silently lost.
func flushPartial(snap *result.RunSnapshot) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(snap)
}
