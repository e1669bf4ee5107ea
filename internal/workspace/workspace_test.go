package workspace_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/benchwatch/internal/task"
	"github.com/signalnine/benchwatch/internal/workspace"
)

func fixtureTask() *task.Task {
	return &task.Task{
		TaskID:            "Fixture/0",
		EntryPoint:        "add",
		Prompt:            "def add(x, y):\n    \"\"\"Add two numbers.\"\"\"\n",
		CanonicalSolution: "    return x + y\n",
		Test:              "import unittest\n",
	}
}

func TestProvisionCreatesAllFiles(t *testing.T) {
	prov := &workspace.DirProvisioner{Root: t.TempDir()}
	ws, err := prov.Provision(fixtureTask(), 1)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	for _, name := range []string{
		workspace.PromptName,
		workspace.ArtifactName,
		filepath.Join(workspace.HiddenTestsDir, "test_solution.py"),
		filepath.Join(workspace.HiddenTestsDir, "__init__.py"),
		filepath.Join(".claude", "settings.json"),
	} {
		if _, err := os.Stat(filepath.Join(ws.Dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	stub, err := os.ReadFile(ws.ArtifactPath)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !strings.HasSuffix(string(stub), "    pass\n") {
		t.Errorf("artifact stub missing placeholder body: %q", stub)
	}
	if !strings.HasPrefix(string(stub), "def add(x, y):") {
		t.Errorf("artifact stub missing signature: %q", stub)
	}
}

func TestProvisionPolicyDeniesHiddenTests(t *testing.T) {
	prov := &workspace.DirProvisioner{Root: t.TempDir()}
	ws, err := prov.Provision(fixtureTask(), 1)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws.Dir, ".claude", "settings.json"))
	if err != nil {
		t.Fatalf("reading policy: %v", err)
	}
	var policy struct {
		Permissions struct {
			Deny []string `json:"deny"`
		} `json:"permissions"`
	}
	if err := json.Unmarshal(data, &policy); err != nil {
		t.Fatalf("parsing policy: %v", err)
	}
	found := false
	for _, rule := range policy.Permissions.Deny {
		if strings.Contains(rule, workspace.HiddenTestsDir) {
			found = true
		}
	}
	if !found {
		t.Errorf("policy does not deny hidden test reads: %v", policy.Permissions.Deny)
	}
}

func TestProvisionResetsArtifactOnRetry(t *testing.T) {
	prov := &workspace.DirProvisioner{Root: t.TempDir()}
	tk := fixtureTask()

	ws1, err := prov.Provision(tk, 1)
	if err != nil {
		t.Fatalf("Provision attempt 1: %v", err)
	}
	// Simulate a broken agent edit.
	if err := os.WriteFile(ws1.ArtifactPath, []byte("broken garbage"), 0o644); err != nil {
		t.Fatalf("mutating artifact: %v", err)
	}

	ws2, err := prov.Provision(tk, 2)
	if err != nil {
		t.Fatalf("Provision attempt 2: %v", err)
	}
	if ws2.Dir == ws1.Dir {
		t.Error("retry must get a fresh workspace directory")
	}
	stub, err := os.ReadFile(ws2.ArtifactPath)
	if err != nil {
		t.Fatalf("reading retry artifact: %v", err)
	}
	if strings.Contains(string(stub), "broken garbage") {
		t.Error("retry artifact carried forward the broken edit")
	}
	if !strings.HasSuffix(string(stub), "    pass\n") {
		t.Error("retry artifact is not the stub")
	}
}

func TestProvisionIsIdempotentPerAttempt(t *testing.T) {
	prov := &workspace.DirProvisioner{Root: t.TempDir()}
	tk := fixtureTask()
	ws1, err := prov.Provision(tk, 1)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	os.WriteFile(filepath.Join(ws1.Dir, "stray.txt"), []byte("x"), 0o644)

	ws2, err := prov.Provision(tk, 1)
	if err != nil {
		t.Fatalf("re-Provision: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws2.Dir, "stray.txt")); !os.IsNotExist(err) {
		t.Error("re-provisioning did not clear the old workspace")
	}
}

func TestCleanup(t *testing.T) {
	prov := &workspace.DirProvisioner{Root: t.TempDir()}
	ws, err := prov.Provision(fixtureTask(), 1)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := prov.Cleanup(ws); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Error("workspace not removed")
	}
}

func TestCleanupKeep(t *testing.T) {
	prov := &workspace.DirProvisioner{Root: t.TempDir(), Keep: true}
	ws, err := prov.Provision(fixtureTask(), 1)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := prov.Cleanup(ws); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(ws.Dir); err != nil {
		t.Error("keep=true must preserve the workspace")
	}
}
