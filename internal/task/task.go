package task

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Task is one immutable unit of work from the suite file. The hidden
// test source ships pre-built in the dataset; authoring it is the
// generator's job, not ours.
type Task struct {
	TaskID            string `json:"task_id"`
	EntryPoint        string `json:"entry_point"`
	Prompt            string `json:"prompt"`
	CanonicalSolution string `json:"canonical_solution"`
	Test              string `json:"test"`
}

// Suite is the full task dataset, loaded once per run and never mutated.
type Suite struct {
	SuiteName string `json:"suite_name"`
	TaskCount int    `json:"task_count"`
	Tasks     []Task `json:"tasks"`
}

// DirName sanitizes the task id for use as a directory name.
func (t *Task) DirName() string {
	return strings.ReplaceAll(t.TaskID, "/", "_")
}

// ReferenceSolution is the complete canonical artifact: the prompt
// (signature + docstring) with the reference body appended. Used only by
// dataset validation, never shown to the agent.
func (t *Task) ReferenceSolution() string {
	return strings.TrimRight(t.Prompt, "\n") + "\n" + strings.TrimLeft(t.CanonicalSolution, "\n")
}

// LoadSuite reads and validates the suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite %s: %w", path, err)
	}
	var suite Suite
	if err := json.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing suite %s: %w", path, err)
	}
	if err := validate(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return &suite, nil
}

func validate(s *Suite) error {
	if len(s.Tasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}
	seen := make(map[string]bool, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.TaskID == "" {
			return fmt.Errorf("task %d: task_id is required", i)
		}
		if seen[t.TaskID] {
			return fmt.Errorf("task %d: duplicate task_id %q", i, t.TaskID)
		}
		seen[t.TaskID] = true
		if t.EntryPoint == "" {
			return fmt.Errorf("task %q: entry_point is required", t.TaskID)
		}
		if t.Prompt == "" {
			return fmt.Errorf("task %q: prompt is required", t.TaskID)
		}
		if t.Test == "" {
			return fmt.Errorf("task %q: test is required", t.TaskID)
		}
	}
	if s.TaskCount != 0 && s.TaskCount != len(s.Tasks) {
		return fmt.Errorf("task_count %d does not match %d tasks", s.TaskCount, len(s.Tasks))
	}
	return nil
}
