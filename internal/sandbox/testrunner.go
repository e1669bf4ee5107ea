// Package sandbox executes a task's hidden tests against the produced
// artifact in an isolated container. Test sources never leave the
// workspace; the agent has already exited when tests run.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signalnine/benchwatch/internal/workspace"
)

// FailureKind classifies why a test run failed.
type FailureKind string

const (
	FailAssertion FailureKind = "assertion_failure"
	FailException FailureKind = "runtime_exception"
	FailTimeout   FailureKind = "timeout"
	FailMalformed FailureKind = "malformed_artifact"
)

// TestOutcome reports a sealed-workspace test run. Output is the
// captured test harness output, safe to hand back to the agent as
// retry feedback (it contains results, not test sources).
type TestOutcome struct {
	Passed      bool
	FailureKind FailureKind
	Output      string
}

// DockerRunner runs the hidden test suite in a disposable container:
// read-only workspace mount, no network, hard timeout.
type DockerRunner struct {
	Image   string
	Timeout time.Duration
}

var testCommand = []string{"python", "-m", "unittest", "discover", "-s", workspace.HiddenTestsDir, "-q"}

// Run executes the hidden tests for a workspace. A returned error is a
// harness fault (docker unreachable, container failed to start), which
// callers must not conflate with agent quality.
func (r *DockerRunner) Run(ctx context.Context, ws *workspace.Workspace) (*TestOutcome, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	res, err := runContainer(ctx, &containerOpts{
		Image:   r.Image,
		Command: testCommand,
		WorkDir: ws.Dir,
		Env:     []string{"PYTHONDONTWRITEBYTECODE=1"},
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("running hidden tests: %w", err)
	}

	if res.ExitCode == 0 && !res.TimedOut {
		return &TestOutcome{Passed: true, Output: res.Output}, nil
	}
	return &TestOutcome{
		Passed:      false,
		FailureKind: Classify(res.Output, res.TimedOut),
		Output:      res.Output,
	}, nil
}

// Classify folds a failed test run's output into a failure kind.
// Malformed artifacts (won't import) are checked first since their
// tracebacks also contain ERROR markers.
func Classify(output string, timedOut bool) FailureKind {
	if timedOut {
		return FailTimeout
	}
	switch {
	case containsAny(output, "SyntaxError", "IndentationError", "ImportError", "ModuleNotFoundError"):
		return FailMalformed
	case containsAny(output, "AssertionError", "FAILED (failures", "FAIL:"):
		return FailAssertion
	case containsAny(output, "FAILED (errors", "Traceback", "ERROR:"):
		return FailException
	default:
		return FailException
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
