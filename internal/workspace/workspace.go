// Package workspace provisions the per-attempt sandbox directory the
// agent works in: the prompt, the artifact stub, the hidden tests, and
// the capability policy that keeps those tests unreachable.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalnine/benchwatch/internal/task"
)

const (
	ArtifactName   = "solution.py"
	PromptName     = "prompt.md"
	HiddenTestsDir = "tests_hidden"
)

// Workspace is one attempt's mutable sandbox instance. Created fresh for
// every attempt and discarded after the attempt concludes.
type Workspace struct {
	Dir          string
	ArtifactPath string
	PromptPath   string
}

// Provisioner produces a ready-to-use workspace for a task attempt, or
// fails with a provisioning error that is fatal to the task only.
type Provisioner interface {
	Provision(t *task.Task, attempt int) (*Workspace, error)
	Cleanup(ws *Workspace) error
}

// DirProvisioner materializes workspaces under Root. Retries get a fresh
// directory with the artifact reset to the stub; the previous attempt's
// broken code is never carried forward.
type DirProvisioner struct {
	Root string
	Keep bool
}

func (p *DirProvisioner) Provision(t *task.Task, attempt int) (*Workspace, error) {
	dir := filepath.Join(p.Root, t.DirName(), fmt.Sprintf("attempt-%d", attempt))
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, HiddenTestsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ".claude"), 0o755); err != nil {
		return nil, fmt.Errorf("creating agent settings dir: %w", err)
	}

	files := map[string]string{
		PromptName:   BuildPromptFile(t),
		ArtifactName: BuildStub(t),
		filepath.Join(HiddenTestsDir, "test_solution.py"): t.Test,
		filepath.Join(HiddenTestsDir, "__init__.py"):      "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}

	policy, err := policyJSON()
	if err != nil {
		return nil, fmt.Errorf("building capability policy: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".claude", "settings.json"), policy, 0o644); err != nil {
		return nil, fmt.Errorf("writing capability policy: %w", err)
	}

	return &Workspace{
		Dir:          dir,
		ArtifactPath: filepath.Join(dir, ArtifactName),
		PromptPath:   filepath.Join(dir, PromptName),
	}, nil
}

// Cleanup removes the attempt directory unless workspaces are kept for
// debugging.
func (p *DirProvisioner) Cleanup(ws *Workspace) error {
	if p.Keep || ws == nil {
		return nil
	}
	return os.RemoveAll(ws.Dir)
}

// CleanupTask removes a task's whole workspace tree after its attempts
// have concluded.
func (p *DirProvisioner) CleanupTask(t *task.Task) error {
	if p.Keep {
		return nil
	}
	return os.RemoveAll(filepath.Join(p.Root, t.DirName()))
}

// policyJSON denies the agent any read of the hidden tests. Combined
// with the invoker's disallowed-tool list this caps the agent at
// read/edit/list/search within the workspace.
func policyJSON() ([]byte, error) {
	policy := map[string]any{
		"permissions": map[string]any{
			"deny": []string{fmt.Sprintf("Read(%s/**)", HiddenTestsDir)},
		},
	}
	data, err := json.MarshalIndent(policy, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// BuildPromptFile renders the task statement shown to the agent.
func BuildPromptFile(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: %s\n\n", t.TaskID)
	fmt.Fprintf(&b, "Implement the following function in `%s`.\n\n", ArtifactName)
	fmt.Fprintf(&b, "```python\n%s\n```\n\n", strings.TrimRight(t.Prompt, "\n"))
	b.WriteString("**Instructions:**\n")
	b.WriteString("- Implement the function body to satisfy the docstring specification.\n")
	fmt.Fprintf(&b, "- Only edit `%s`. Do not create new files.\n", ArtifactName)
	b.WriteString("- The function signature is already provided — fill in the implementation.\n")
	return b.String()
}

// BuildStub renders the initial artifact: the signature and docstring
// with a placeholder body.
func BuildStub(t *task.Task) string {
	return strings.TrimRight(t.Prompt, "\n") + "\n    pass\n"
}
