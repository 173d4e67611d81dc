package verifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSON renders the report for machines.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Text renders the report for people.
func (r *Report) Text() string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nKnowledge base verification (%s)\n%s\n", rule, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), rule)
	fmt.Fprintf(&b, "documents: %d  chunks: %d  embedded: %d  coverage: %.1f%%\n",
		r.Stats.Documents, r.Stats.Chunks, r.Stats.Embedded, r.Stats.Coverage)
	if r.Stats.LastSynced != nil {
		fmt.Fprintf(&b, "last sync: %s\n", r.Stats.LastSynced.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	if len(r.Stats.Categories) > 0 {
		b.WriteString("\ncategories:\n")
		for _, c := range r.Stats.Categories {
			fmt.Fprintf(&b, "  - %s: %d chunks (quality %.2f)\n", c.Category, c.Count, c.AvgQuality)
		}
	}

	var passed, failed []Check
	for _, c := range r.Checks {
		if c.Passed {
			passed = append(passed, c)
		} else {
			failed = append(failed, c)
		}
	}
	if len(passed) > 0 {
		fmt.Fprintf(&b, "\nPassed (%d):\n", len(passed))
		for _, c := range passed {
			fmt.Fprintf(&b, "  [ok]   %-20s %s\n", c.Name, c.Reason)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nFailed (%d):\n", len(failed))
		for _, c := range failed {
			fmt.Fprintf(&b, "  [fail] %-20s %s\n", c.Name, c.Reason)
		}
	}
	for _, f := range r.Stats.FailedSyncs {
		fmt.Fprintf(&b, "    failed:  %s: %s\n", f.FilePath, f.SyncError)
	}
	for _, f := range r.Stats.Partial {
		fmt.Fprintf(&b, "    partial: %s: %s\n", f.FilePath, f.SyncError)
	}

	b.WriteString("\n" + rule + "\n")
	if r.Passed {
		b.WriteString("All checks passed\n")
	} else {
		b.WriteString("Some checks failed\n")
	}
	b.WriteString(rule + "\n")
	return b.String()
}
