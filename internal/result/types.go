package result

// ModelUsage counts tokens consumed for one model across one or more
// agent invocations. JSON keys mirror the agent CLI's usage report so
// the dashboard can consume either file unchanged.
type ModelUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// TaskResult is the finalized outcome of one task. Immutable once the
// attempt loop has terminated.
type TaskResult struct {
	TaskID            string                `json:"task_id"`
	FunctionName      string                `json:"function_name"`
	Passed            bool                  `json:"passed"`
	AttemptsUsed      int                   `json:"attempts_used"`
	NumTurnsTotal     int                   `json:"num_turns_total"`
	DurationMSTotal   int64                 `json:"duration_ms_total"`
	TotalCostUSDTotal float64               `json:"total_cost_usd_total"`
	ModelUsage        map[string]ModelUsage `json:"modelUsage"`
	ErrorType         *string               `json:"error_type"`
}

// RunSnapshot is one complete benchmark run. Written exactly once at run
// completion and never mutated afterward.
type RunSnapshot struct {
	RunID           string                `json:"run_id"`
	Date            string                `json:"date"`
	Suite           string                `json:"suite"`
	Score           float64               `json:"score"`
	Passed          int                   `json:"passed"`
	Total           int                   `json:"total"`
	TotalCostUSD    float64               `json:"total_cost_usd"`
	TotalDurationMS int64                 `json:"total_duration_ms"`
	PrimaryModel    string                `json:"primary_model"`
	AgentVersion    string                `json:"agent_version"`
	ModelUsage      map[string]ModelUsage `json:"modelUsage"`
	StartedAt       string                `json:"started_at"`
	FinishedAt      string                `json:"finished_at"`
	Tasks           []TaskResult          `json:"tasks"`
}

// HistoryEntry is the summary row kept per run for trend charting.
type HistoryEntry struct {
	RunID           string  `json:"run_id"`
	Date            string  `json:"date"`
	Score           float64 `json:"score"`
	Passed          int     `json:"passed"`
	Total           int     `json:"total"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	TotalDurationMS int64   `json:"total_duration_ms"`
	PrimaryModel    string  `json:"primary_model"`
	AgentVersion    string  `json:"agent_version"`
}

// History is the append-only sequence of run summaries, ascending by
// run_id and unique per run_id.
type History struct {
	Entries []HistoryEntry `json:"entries"`
}

// Summary projects a snapshot onto its history row.
func (s *RunSnapshot) Summary() HistoryEntry {
	return HistoryEntry{
		RunID:           s.RunID,
		Date:            s.Date,
		Score:           s.Score,
		Passed:          s.Passed,
		Total:           s.Total,
		TotalCostUSD:    s.TotalCostUSD,
		TotalDurationMS: s.TotalDurationMS,
		PrimaryModel:    s.PrimaryModel,
		AgentVersion:    s.AgentVersion,
	}
}

// ErrType wraps an error classification string for the nullable
// error_type field.
func ErrType(s string) *string {
	return &s
}
