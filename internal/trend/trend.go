// Package trend classifies a run score against the rolling window of
// prior runs. Classification is a pure function of its inputs so it can
// run against any history slice, live or in tests.
package trend

import "github.com/signalnine/benchwatch/internal/result"

type Label string

const (
	Unknown    Label = "UNKNOWN"
	Regressed  Label = "REGRESSED"
	Borderline Label = "BORDERLINE"
	Nominal    Label = "NOMINAL"
)

// Thresholds on delta = currentScore - baseline mean, in score points.
const (
	regressedDelta  = -5.0
	borderlineDelta = -2.0
)

// Verdict carries the classification plus the numbers that produced it.
type Verdict struct {
	Label    Label   `json:"label"`
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`
	Window   int     `json:"window"`
}

// Classify compares currentScore against the mean of the most recent
// windowSize history entries strictly preceding currentRunID. The
// current run never contributes to its own baseline. An empty baseline
// yields UNKNOWN.
func Classify(currentRunID string, currentScore float64, hist *result.History, windowSize int) Verdict {
	var prior []result.HistoryEntry
	if hist != nil {
		for _, e := range hist.Entries {
			if currentRunID == "" || e.RunID < currentRunID {
				prior = append(prior, e)
			}
		}
	}
	if len(prior) > windowSize {
		prior = prior[len(prior)-windowSize:]
	}
	if len(prior) == 0 {
		return Verdict{Label: Unknown}
	}

	var sum float64
	for _, e := range prior {
		sum += e.Score
	}
	baseline := sum / float64(len(prior))
	delta := currentScore - baseline

	v := Verdict{Baseline: baseline, Delta: delta, Window: len(prior)}
	switch {
	case delta <= regressedDelta:
		v.Label = Regressed
	case delta <= borderlineDelta:
		v.Label = Borderline
	default:
		v.Label = Nominal
	}
	return v
}
