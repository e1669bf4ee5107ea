// Package attempt drives one task through its bounded invoke/test
// cycles. The loop is an explicit state machine so attempt accounting
// stays auditable: every attempt is charged or transparently retried by
// a named transition, never by implicit control flow.
package attempt

import (
	"context"
	"log"
	"strings"

	"github.com/signalnine/benchwatch/internal/agent"
	"github.com/signalnine/benchwatch/internal/result"
	"github.com/signalnine/benchwatch/internal/sandbox"
	"github.com/signalnine/benchwatch/internal/task"
	"github.com/signalnine/benchwatch/internal/workspace"
)

type State string

const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateRetrying   State = "retrying"
	StatePassed     State = "passed"
	StateExhausted  State = "exhausted"
)

// Error classifications recorded on a TaskResult.
const (
	ErrProvisioning  = "provisioning_error"
	ErrInfra         = "infra_error"
	ErrBudget        = "budget_exceeded"
	ErrTimeout       = "timeout"
	ErrTestExecution = "test_execution_error"
)

// feedbackLimit caps the failure output carried into a retry prompt.
const feedbackLimit = 2000

// TestRunner is the sealed-workspace hidden-test contract.
type TestRunner interface {
	Run(ctx context.Context, ws *workspace.Workspace) (*sandbox.TestOutcome, error)
}

// Controller runs tasks through 1..MaxAttempts attempt cycles. A
// Controller holds no per-task state; RunTask is safe to call from
// concurrent goroutines on independent tasks.
type Controller struct {
	Provisioner workspace.Provisioner
	Invoker     agent.Invoker
	Tests       TestRunner

	MaxAttempts int
	// ChargeInfraErrors charges agent infrastructure failures against
	// the attempt budget. When false they are retried transparently, up
	// to InfraRetryLimit extra invocations per task so the loop always
	// terminates.
	ChargeInfraErrors bool
	InfraRetryLimit   int

	MaxTurns        int
	MaxBudgetUSD    float64
	DisallowedTools []string
}

// RunTask drives one task to a terminal state and returns its immutable
// result. Per-attempt faults are recorded, never propagated; nothing a
// single task does can abort the run.
func (c *Controller) RunTask(ctx context.Context, t *task.Task) *result.TaskResult {
	res := &result.TaskResult{
		TaskID:       t.TaskID,
		FunctionName: t.EntryPoint,
		ModelUsage:   map[string]result.ModelUsage{},
	}

	state := StatePending
	attempts := 0
	infraRetries := 0
	feedback := ""
	errType := ""

	state = StateAttempting
	for state == StateAttempting || state == StateRetrying {
		if state == StateRetrying {
			state = StateAttempting
		}
		if ctx.Err() != nil {
			errType = ErrInfra
			state = StateExhausted
			break
		}

		ws, err := c.Provisioner.Provision(t, attempts+1)
		if err != nil {
			log.Printf("warning: provisioning %s: %v", t.TaskID, err)
			errType = ErrProvisioning
			state = StateExhausted
			break
		}

		out, err := c.Invoker.Invoke(ctx, ws, agent.Request{
			Prompt:          buildPrompt(feedback),
			MaxTurns:        c.MaxTurns,
			MaxBudgetUSD:    c.MaxBudgetUSD,
			DisallowedTools: c.DisallowedTools,
		})
		if err != nil {
			// Invoker contract violation; treat like an unreachable agent.
			log.Printf("warning: invoking agent for %s: %v", t.TaskID, err)
			out = &agent.Outcome{Kind: agent.KindInfraError, ErrorSubtype: "invoker_error"}
		}
		accumulate(res, out)

		// Tests run even after an agent error: a partial artifact may
		// still pass. The workspace is sealed; the agent process has
		// exited.
		tout, terr := c.Tests.Run(ctx, ws)
		if terr != nil {
			log.Printf("warning: test harness fault for %s: %v", t.TaskID, terr)
		}
		if err := c.Provisioner.Cleanup(ws); err != nil {
			log.Printf("warning: cleaning workspace for %s: %v", t.TaskID, err)
		}

		if terr == nil && tout.Passed {
			attempts++
			errType = ""
			state = StatePassed
			break
		}

		if out.Kind == agent.KindInfraError && !c.ChargeInfraErrors && infraRetries < c.InfraRetryLimit {
			// Transparent retry: the slot is not charged and the prior
			// feedback, if any, carries over unchanged.
			infraRetries++
			state = StateAttempting
			continue
		}

		attempts++
		switch {
		case out.Kind != agent.KindCompleted:
			errType = outcomeErrType(out)
		case terr != nil:
			errType = ErrTestExecution
		default:
			errType = string(tout.FailureKind)
		}

		if attempts >= c.MaxAttempts {
			state = StateExhausted
			break
		}
		if terr == nil {
			feedback = truncateFeedback(tout.Output)
		}
		state = StateRetrying
	}

	res.Passed = state == StatePassed
	res.AttemptsUsed = attempts
	if errType != "" {
		res.ErrorType = result.ErrType(errType)
	}
	return res
}

func accumulate(res *result.TaskResult, out *agent.Outcome) {
	res.NumTurnsTotal += out.NumTurns
	res.TotalCostUSDTotal += out.CostUSD
	res.DurationMSTotal += out.Duration.Milliseconds()
	for model, u := range out.ModelUsage {
		merged := res.ModelUsage[model]
		merged.InputTokens += u.InputTokens
		merged.OutputTokens += u.OutputTokens
		res.ModelUsage[model] = merged
	}
}

func outcomeErrType(out *agent.Outcome) string {
	switch out.Kind {
	case agent.KindBudgetExceeded:
		return ErrBudget
	case agent.KindTimeout:
		return ErrTimeout
	default:
		return ErrInfra
	}
}

func buildPrompt(feedback string) string {
	base := "Read prompt.md and implement the function in solution.py. " +
		"Only edit solution.py. Do not create new files."
	if feedback == "" {
		return base
	}
	return base + "\n\nA previous attempt failed its tests with the following output:\n\n" +
		feedback + "\n\nFix solution.py so the tests pass."
}

func truncateFeedback(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > feedbackLimit {
		return output[:feedbackLimit] + "\n... (truncated)"
	}
	return output
}
