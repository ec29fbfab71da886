package render

import (
	"fmt"
	"strings"

	"github.com/luyangsi/semiconductors-data-platform/pkg/dq"
)

// DQReport renders a data quality run as markdown.
func DQReport(run *dq.RunResult) string {
	var b strings.Builder

	b.WriteString("# Data Quality Report\n\n")
	fmt.Fprintf(&b, "- **Evaluated:** %s\n", run.EvaluatedAt.Format(timeFormat))
	fmt.Fprintf(&b, "- **Rules:** %d (%d passed, %d warnings, %d failed)\n\n",
		len(run.Results), run.Passed, run.Warnings, run.Failures)

	if run.Failed() {
		b.WriteString("**Overall status: FAIL**\n\n")
	} else if run.Warnings > 0 {
		b.WriteString("**Overall status: WARNING**\n\n")
	} else {
		b.WriteString("**Overall status: PASS**\n\n")
	}

	header(&b, "Rule", "Category", "Severity", "Checked", "Violations", "Status")
	for _, res := range run.Results {
		row(&b, res.Rule.Name, string(res.Rule.Category), string(res.Rule.Severity),
			itoa(res.Checked), itoa(res.Violations), string(res.Status))
	}
	b.WriteString("\n")

	wroteHeader := false
	for _, res := range run.Results {
		if len(res.Samples) == 0 {
			continue
		}
		if !wroteHeader {
			b.WriteString("## Violation Samples\n\n")
			wroteHeader = true
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", res.Rule.Name, strings.Join(res.Samples, ", "))
	}
	if wroteHeader {
		b.WriteString("\n")
	}

	return b.String()
}
