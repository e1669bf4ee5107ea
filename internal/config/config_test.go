package config_test

import (
	"testing"

	"github.com/signalnine/benchwatch/internal/config"
)

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Command != "claude" {
		t.Errorf("agent command: got %q, want %q", cfg.Agent.Command, "claude")
	}
	if cfg.Agent.MaxTurns != 6 {
		t.Errorf("max_turns: got %d, want 6", cfg.Agent.MaxTurns)
	}
	if cfg.Agent.MaxBudgetUSD != 0.10 {
		t.Errorf("max_budget_usd: got %f, want 0.10", cfg.Agent.MaxBudgetUSD)
	}
	if cfg.Attempts.Max != 2 {
		t.Errorf("attempts.max: got %d, want 2", cfg.Attempts.Max)
	}
	if !cfg.Attempts.ChargeInfra() {
		t.Error("expected charge_infra_errors to default to true")
	}
	if cfg.Sandbox.Image != "python:3.12-slim" {
		t.Errorf("sandbox image: got %q", cfg.Sandbox.Image)
	}
	if cfg.Trend.Window != 5 {
		t.Errorf("trend window: got %d, want 5", cfg.Trend.Window)
	}
	if cfg.Parallel != 1 {
		t.Errorf("parallel: got %d, want 1", cfg.Parallel)
	}
	if len(cfg.Agent.DisallowedTools) == 0 {
		t.Error("expected default disallowed tools")
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Attempts.Max != 3 {
		t.Errorf("attempts.max: got %d, want 3", cfg.Attempts.Max)
	}
	if cfg.Attempts.ChargeInfra() {
		t.Error("expected charge_infra_errors false")
	}
	if cfg.Trend.Window != 7 {
		t.Errorf("trend window: got %d, want 7", cfg.Trend.Window)
	}
	if cfg.Parallel != 4 {
		t.Errorf("parallel: got %d, want 4", cfg.Parallel)
	}
	if len(cfg.Agent.DisallowedTools) != 3 {
		t.Errorf("disallowed tools: got %d, want 3", len(cfg.Agent.DisallowedTools))
	}
	if !cfg.Workspace.Keep {
		t.Error("expected workspace.keep true")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := config.Load("nonexistent.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := config.Load("../../testdata/invalid.yaml"); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
