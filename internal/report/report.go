package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/benchwatch/internal/result"
	"github.com/signalnine/benchwatch/internal/trend"
)

// Generate renders the latest snapshot, the history tail, and the trend
// verdict in the requested format.
func Generate(store *result.Store, format string, window int, w io.Writer) error {
	snap, err := store.ReadLatest()
	if err != nil {
		return err
	}
	hist, err := store.ReadHistory()
	if err != nil {
		return err
	}
	verdict := trend.Classify(snap.RunID, snap.Score, hist, window)

	switch format {
	case "markdown":
		return writeMarkdown(snap, hist, verdict, w)
	case "json":
		return writeJSON(snap, hist, verdict, w)
	default:
		return writeTable(snap, hist, verdict, w)
	}
}

func errType(r *result.TaskResult) string {
	if r.ErrorType == nil {
		return "-"
	}
	return *r.ErrorType
}

func writeTable(snap *result.RunSnapshot, hist *result.History, verdict trend.Verdict, w io.Writer) error {
	fmt.Fprintf(w, "Run %s (%s)\n", snap.RunID, snap.Suite)
	fmt.Fprintf(w, "Score: %.1f (%d/%d passed)  Cost: $%.4f  Duration: %.1fs  Model: %s\n",
		snap.Score, snap.Passed, snap.Total, snap.TotalCostUSD,
		float64(snap.TotalDurationMS)/1000, snap.PrimaryModel)
	fmt.Fprintf(w, "Trend: %s", verdict.Label)
	if verdict.Label != trend.Unknown {
		fmt.Fprintf(w, " (baseline %.1f over %d runs, delta %+.1f)", verdict.Baseline, verdict.Window, verdict.Delta)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tPASSED\tATTEMPTS\tTURNS\tCOST\tERROR")
	fmt.Fprintln(tw, strings.Repeat("-", 70))
	for i := range snap.Tasks {
		r := &snap.Tasks[i]
		fmt.Fprintf(tw, "%s\t%v\t%d\t%d\t$%.4f\t%s\n",
			r.TaskID, r.Passed, r.AttemptsUsed, r.NumTurnsTotal, r.TotalCostUSDTotal, errType(r))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(hist.Entries) > 1 {
		fmt.Fprintln(w, "\nHistory:")
		tail := hist.Entries
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		for _, e := range tail {
			fmt.Fprintf(w, "  %s  %.1f (%d/%d)\n", e.RunID, e.Score, e.Passed, e.Total)
		}
	}
	return nil
}

func writeMarkdown(snap *result.RunSnapshot, hist *result.History, verdict trend.Verdict, w io.Writer) error {
	fmt.Fprintf(w, "## Run %s (%s)\n\n", snap.RunID, snap.Suite)
	fmt.Fprintf(w, "**Score:** %.1f (%d/%d) | **Trend:** %s | **Cost:** $%.4f | **Model:** %s\n\n",
		snap.Score, snap.Passed, snap.Total, verdict.Label, snap.TotalCostUSD, snap.PrimaryModel)
	fmt.Fprintln(w, "| Task | Passed | Attempts | Turns | Cost | Error |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for i := range snap.Tasks {
		r := &snap.Tasks[i]
		fmt.Fprintf(w, "| %s | %v | %d | %d | $%.4f | %s |\n",
			r.TaskID, r.Passed, r.AttemptsUsed, r.NumTurnsTotal, r.TotalCostUSDTotal, errType(r))
	}
	return nil
}

func writeJSON(snap *result.RunSnapshot, hist *result.History, verdict trend.Verdict, w io.Writer) error {
	out := struct {
		Snapshot *result.RunSnapshot   `json:"snapshot"`
		Verdict  trend.Verdict         `json:"verdict"`
		History  []result.HistoryEntry `json:"history"`
	}{snap, verdict, hist.Entries}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
