package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/antibody/internal/model"
)

var jsonOut bool

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(summary model.BatchSummary) {
	fmt.Fprintf(os.Stderr, "\n%d total, %d completed, %d failed\n", summary.Total, summary.Completed, summary.Failed)
}

func printVulnerable(records []model.VulnerabilityRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tDECAY\tWEIGHT\tCONTRA\tCLAIM\tTEXT")
	for _, r := range records {
		fmt.Fprintf(w, "%.3f\t%.2f\t%.2f\t%d\t%s\t%s\n",
			r.Score, r.Claim.DecayScore, r.DependencyWeight, r.Claim.ContradictionCount,
			r.Claim.ID, truncate(r.Claim.Text, 60))
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
