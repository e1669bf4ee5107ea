package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Dataset   string    `yaml:"dataset"`
	Data      Data      `yaml:"data"`
	Workspace Workspace `yaml:"workspace"`
	Agent     Agent     `yaml:"agent"`
	Attempts  Attempts  `yaml:"attempts"`
	Sandbox   Sandbox   `yaml:"sandbox"`
	Trend     Trend     `yaml:"trend"`
	Secrets   Secrets   `yaml:"secrets"`
	Parallel  int       `yaml:"parallel"`
}

type Data struct {
	Dir string `yaml:"dir"`
}

type Workspace struct {
	Dir  string `yaml:"dir"`
	Keep bool   `yaml:"keep"`
}

type Agent struct {
	Command         string   `yaml:"command"`
	MaxTurns        int      `yaml:"max_turns"`
	MaxBudgetUSD    float64  `yaml:"max_budget_usd"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	PermissionMode  string   `yaml:"permission_mode"`
	DisallowedTools []string `yaml:"disallowed_tools"`
	PricingFile     string   `yaml:"pricing_file"`
}

type Attempts struct {
	Max int `yaml:"max"`
	// ChargeInfraErrors decides whether an agent infrastructure failure
	// consumes an attempt slot. Defaults to true.
	ChargeInfraErrors *bool `yaml:"charge_infra_errors"`
	// InfraRetryLimit bounds transparent retries per task when
	// charge_infra_errors is false.
	InfraRetryLimit int `yaml:"infra_retry_limit"`
}

type Sandbox struct {
	Image          string `yaml:"image"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Trend struct {
	Window int `yaml:"window"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

// defaultDisallowedTools keeps the agent to the read/edit/list/search
// capability subset: no shell, no network, no arbitrary file creation.
var defaultDisallowedTools = []string{
	"Bash", "WebFetch", "WebSearch", "Task", "NotebookEdit", "Write",
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (a *Attempts) ChargeInfra() bool {
	return a.ChargeInfraErrors == nil || *a.ChargeInfraErrors
}

func validate(cfg *Config) error {
	if cfg.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Workspace.Dir == "" {
		cfg.Workspace.Dir = "workspace"
	}
	if cfg.Agent.Command == "" {
		cfg.Agent.Command = "claude"
	}
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = 6
	}
	if cfg.Agent.MaxTurns < 1 {
		return fmt.Errorf("agent.max_turns must be at least 1")
	}
	if cfg.Agent.MaxBudgetUSD == 0 {
		cfg.Agent.MaxBudgetUSD = 0.10
	}
	if cfg.Agent.MaxBudgetUSD < 0 {
		return fmt.Errorf("agent.max_budget_usd must not be negative")
	}
	if cfg.Agent.TimeoutSeconds == 0 {
		cfg.Agent.TimeoutSeconds = 300
	}
	if cfg.Agent.PermissionMode == "" {
		cfg.Agent.PermissionMode = "acceptEdits"
	}
	if cfg.Agent.DisallowedTools == nil {
		cfg.Agent.DisallowedTools = defaultDisallowedTools
	}
	if cfg.Attempts.Max == 0 {
		cfg.Attempts.Max = 2
	}
	if cfg.Attempts.Max < 1 {
		return fmt.Errorf("attempts.max must be at least 1")
	}
	if cfg.Attempts.InfraRetryLimit == 0 {
		cfg.Attempts.InfraRetryLimit = 2
	}
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = "python:3.12-slim"
	}
	if cfg.Sandbox.TimeoutSeconds == 0 {
		cfg.Sandbox.TimeoutSeconds = 30
	}
	if cfg.Trend.Window == 0 {
		cfg.Trend.Window = 5
	}
	if cfg.Trend.Window < 1 {
		return fmt.Errorf("trend.window must be at least 1")
	}
	if cfg.Parallel == 0 {
		cfg.Parallel = 1
	}
	if cfg.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1")
	}
	return nil
}
