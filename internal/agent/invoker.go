// Package agent invokes the external code-generation agent against a
// workspace. The agent is an opaque capability behind the Invoker
// interface so the attempt loop can run against a deterministic stub.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/signalnine/benchwatch/internal/result"
	"github.com/signalnine/benchwatch/internal/workspace"
)

// Kind classifies the invocation outcome.
type Kind string

const (
	// KindCompleted means the agent ran to completion within budget.
	// The artifact may still fail its tests.
	KindCompleted Kind = "completed"
	// KindBudgetExceeded means the turn or spend ceiling aborted the
	// invocation.
	KindBudgetExceeded Kind = "budget_exceeded"
	// KindTimeout means the wall-clock ceiling killed the agent process.
	KindTimeout Kind = "timeout"
	// KindInfraError means the agent process was unreachable, crashed,
	// or produced unparseable output.
	KindInfraError Kind = "infra_error"
)

// Request is one bounded invocation: prompt, hard ceilings, and the
// capability subset the agent is restricted to.
type Request struct {
	Prompt          string
	MaxTurns        int
	MaxBudgetUSD    float64
	DisallowedTools []string
}

// Outcome summarizes one invocation. Budget and infrastructure failures
// are outcomes, not Go errors; errors are reserved for caller bugs.
type Outcome struct {
	Kind         Kind
	SessionID    string
	NumTurns     int
	CostUSD      float64
	Duration     time.Duration
	ModelUsage   map[string]result.ModelUsage
	ErrorSubtype string
}

type Invoker interface {
	Invoke(ctx context.Context, ws *workspace.Workspace, req Request) (*Outcome, error)
	Version(ctx context.Context) string
}

// CLIInvoker shells out to a headless agent CLI in the workspace
// directory and parses its JSON result. The CLI enforces the turn and
// spend ceilings itself; the wall-clock ceiling is enforced here by
// killing the process when the deadline passes.
type CLIInvoker struct {
	Command        string
	Timeout        time.Duration
	PermissionMode string
}

func (c *CLIInvoker) Invoke(ctx context.Context, ws *workspace.Workspace, req Request) (*Outcome, error) {
	args := []string{
		"-p", req.Prompt,
		"--output-format", "json",
		"--max-turns", strconv.Itoa(req.MaxTurns),
		"--max-budget-usd", strconv.FormatFloat(req.MaxBudgetUSD, 'f', -1, 64),
		"--permission-mode", c.PermissionMode,
	}
	if len(req.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(req.DisallowedTools, ","))
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Command, args...)
	// Children of the agent process can inherit the stdout/stderr pipes
	// and keep them open past the kill; stop waiting on pipe I/O shortly
	// after the deadline so the ceiling is actually enforced.
	cmd.WaitDelay = time.Second
	cmd.Dir = ws.Dir
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &Outcome{Kind: KindTimeout, Duration: duration, ErrorSubtype: "timeout"}, nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Spawn failure: command not found, permissions, etc.
			return &Outcome{Kind: KindInfraError, Duration: duration, ErrorSubtype: "spawn_failed"}, nil
		}
		// Nonzero exit still usually carries a JSON result; fall through
		// to parsing and let the subtype decide.
	}

	out, err := ParseCLIResult(stdout.Bytes())
	if err != nil {
		return &Outcome{Kind: KindInfraError, Duration: duration, ErrorSubtype: "agent_error"}, nil
	}
	out.Duration = duration
	return out, nil
}

// Version probes the agent CLI version string, "unknown" when the probe
// fails.
func (c *CLIInvoker) Version(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, c.Command, "--version").CombinedOutput()
	v := strings.TrimSpace(string(out))
	if err != nil || v == "" {
		return "unknown"
	}
	return v
}

// ParseCLIResult interprets the agent CLI's JSON output. The CLI has
// emitted both camelCase and snake_case field names across versions, so
// both spellings are accepted.
func ParseCLIResult(data []byte) (*Outcome, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	out := &Outcome{
		Kind:       KindCompleted,
		SessionID:  pickString(raw, "sessionId", "session_id"),
		NumTurns:   int(pickNumber(raw, "numTurns", "num_turns")),
		CostUSD:    pickNumber(raw, "costUSD", "cost_usd", "total_cost_usd"),
		ModelUsage: pickUsage(raw, "modelUsage", "model_usage"),
	}

	isError := pickBool(raw, "isError", "is_error")
	subtype := pickString(raw, "subtype", "errorType", "error_type")
	if isError {
		out.ErrorSubtype = subtype
		if out.ErrorSubtype == "" {
			out.ErrorSubtype = "agent_error"
		}
		out.Kind = kindFromSubtype(out.ErrorSubtype)
	}
	return out, nil
}

// kindFromSubtype folds the CLI's error subtypes into the outcome
// taxonomy: ceiling subtypes are budget failures, everything else is
// infrastructure.
func kindFromSubtype(subtype string) Kind {
	s := strings.ToLower(subtype)
	switch {
	case strings.Contains(s, "budget"), strings.Contains(s, "max_turns"), strings.Contains(s, "turn_limit"):
		return KindBudgetExceeded
	case strings.Contains(s, "timeout"):
		return KindTimeout
	default:
		return KindInfraError
	}
}

func pickString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				return s
			}
		}
	}
	return ""
}

func pickNumber(raw map[string]json.RawMessage, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var f float64
			if json.Unmarshal(v, &f) == nil && f != 0 {
				return f
			}
		}
	}
	return 0
}

func pickBool(raw map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var b bool
			if json.Unmarshal(v, &b) == nil && b {
				return true
			}
		}
	}
	return false
}

func pickUsage(raw map[string]json.RawMessage, keys ...string) map[string]result.ModelUsage {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var usage map[string]result.ModelUsage
			if json.Unmarshal(v, &usage) == nil && len(usage) > 0 {
				return usage
			}
		}
	}
	return map[string]result.ModelUsage{}
}
