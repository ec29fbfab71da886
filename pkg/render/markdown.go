// Package render formats analysis and data quality results as markdown
// reports.
package render

import (
	"fmt"
	"strings"

	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

const timeFormat = "2006-01-02 15:04:05 UTC"

// Report renders the full analysis report as markdown.
func Report(r *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Manufacturing Analysis Report\n\n")
	fmt.Fprintf(&b, "- **Run ID:** %s\n", r.RunID)
	fmt.Fprintf(&b, "- **Generated:** %s\n", r.GeneratedAt.UTC().Format(timeFormat))
	fmt.Fprintf(&b, "- **Data through:** %s\n\n", r.ObservedEnd.UTC().Format(timeFormat))

	renderEquipmentYield(&b, r.EquipmentYield)
	renderYieldTrend(&b, r.YieldTrend)
	renderStepFailures(&b, r.StepFailures)
	renderBatchYield(&b, r.BatchYield)
	renderPareto(&b, r.DefectPareto)
	renderFirstPass(&b, r.FirstPassYield)
	renderUptime(&b, r.Uptime)
	renderMTBF(&b, r.MTBF)
	renderAlarms(&b, r.AlarmFrequency)
	renderDegradation(&b, r.Degradation)
	renderUtilization(&b, r.UtilizationYield)
	renderMaintenanceEffect(&b, r.MaintenanceEffect)
	renderCriticality(&b, r.Criticality)
	renderBatchPairs(&b, r.BatchPairCorrelation)
	renderSequences(&b, r.SequenceFailures)
	renderContamination(&b, r.Contamination)
	renderLineage(&b, r.Lineage)

	return b.String()
}

func section(b *strings.Builder, title string, rowCount int) bool {
	fmt.Fprintf(b, "## %s\n\n", title)
	if rowCount == 0 {
		b.WriteString("No rows met the minimum sample requirements.\n\n")
		return false
	}
	return true
}

func header(b *strings.Builder, columns ...string) {
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
}

func row(b *strings.Builder, cells ...string) {
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }
func f2(v float64) string { return fmt.Sprintf("%.2f", v) }
func f3(v float64) string { return fmt.Sprintf("%.3f", v) }

func optPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return f1(*v)
}

func renderEquipmentYield(b *strings.Builder, rows []models.EquipmentYieldRow) {
	if !section(b, "Equipment Yield (worst first)", len(rows)) {
		return
	}
	header(b, "Equipment", "Type", "Wafers", "Tests", "Pass", "Yield %")
	for _, r := range rows {
		row(b, r.EquipmentID, r.EquipmentType, itoa(r.WaferCount), itoa(r.TestCount), itoa(r.PassCount), f1(r.YieldPct))
	}
	b.WriteString("\n")
}

func renderYieldTrend(b *strings.Builder, rows []models.YieldTrendRow) {
	if !section(b, "Daily Yield Trend", len(rows)) {
		return
	}
	header(b, "Equipment", "Day", "Tests", "Yield %", "Trailing Avg", "Group Mean", "Deviation")
	for _, r := range rows {
		row(b, r.EquipmentID, r.Day.Format("2006-01-02"), itoa(r.WaferCount),
			f1(r.YieldPct), f1(r.TrailingAvg), f1(r.GroupMean), string(r.Deviation))
	}
	b.WriteString("\n")
}

func renderStepFailures(b *strings.Builder, rows []models.StepFailureRow) {
	if !section(b, "Process Step Failure Rates", len(rows)) {
		return
	}
	header(b, "Step", "Name", "Tests", "Failures", "Failure %")
	for _, r := range rows {
		row(b, itoa(r.StepID), r.StepName, itoa(r.TotalCount), itoa(r.FailCount), f1(r.FailureRatePct))
	}
	b.WriteString("\n")
}

func renderBatchYield(b *strings.Builder, rows []models.BatchYieldRow) {
	if !section(b, "Batch Yield (worst first)", len(rows)) {
		return
	}
	header(b, "Batch", "Lot", "Recipe", "Wafers", "Yield %", "Disposition", "Most Failed Step")
	for _, r := range rows {
		step := "-"
		if r.MostFailedStepID != nil {
			step = fmt.Sprintf("%d (%s)", *r.MostFailedStepID, r.MostFailedStepName)
		}
		row(b, r.BatchID, r.LotNumber, r.Recipe, itoa(r.WaferCount), f1(r.YieldPct), string(r.Disposition), step)
	}
	b.WriteString("\n")
}

func renderPareto(b *strings.Builder, rows []models.ParetoRow) {
	if !section(b, "Defect Pareto", len(rows)) {
		return
	}
	header(b, "Bin", "Defects", "%", "Cumulative %", "Priority")
	for _, r := range rows {
		row(b, r.BinCode, itoa(r.DefectCount), f1(r.Pct), f1(r.CumulativePct), string(r.Priority))
	}
	b.WriteString("\n")
}

func renderFirstPass(b *strings.Builder, rows []models.FirstPassYieldRow) {
	if !section(b, "First-Pass vs Final Yield", len(rows)) {
		return
	}
	header(b, "Batch", "Wafers", "First-Pass %", "Final %")
	for _, r := range rows {
		row(b, r.BatchID, itoa(r.WaferCount), f1(r.FirstPassYieldPct), f1(r.FinalYieldPct))
	}
	b.WriteString("\n")
}

func renderUptime(b *strings.Builder, rows []models.UptimeRow) {
	if !section(b, "Equipment Uptime", len(rows)) {
		return
	}
	header(b, "Equipment", "Events", "Uptime %", "Tier")
	for _, r := range rows {
		row(b, r.EquipmentID, itoa(r.EventCount), f1(r.UptimePct), string(r.Tier))
	}
	b.WriteString("\n")
}

func renderMTBF(b *strings.Builder, rows []models.MTBFRow) {
	if !section(b, "Mean Time Between Failures", len(rows)) {
		return
	}
	header(b, "Equipment", "Down Events", "MTBF (h)", "Tier")
	for _, r := range rows {
		row(b, r.EquipmentID, itoa(r.DownEvents), f1(r.MTBFHours), string(r.Tier))
	}
	b.WriteString("\n")
}

func renderAlarms(b *strings.Builder, rows []models.AlarmFrequencyRow) {
	if !section(b, "Alarm Frequency", len(rows)) {
		return
	}
	header(b, "Equipment", "Alarms", "Severity")
	for _, r := range rows {
		row(b, r.EquipmentID, itoa(r.AlarmCount), string(r.Severity))
	}
	b.WriteString("\n")
}

func renderDegradation(b *strings.Builder, rows []models.DegradationRow) {
	if !section(b, "Sensor Degradation", len(rows)) {
		return
	}
	header(b, "Equipment", "Temp StdDev", "Baseline StdDev", "Alarms", "Baseline Alarms", "Risk")
	for _, r := range rows {
		row(b, r.EquipmentID, f2(r.CurrentTempStdDev), f2(r.BaselineTempStdDev),
			f1(r.CurrentAlarms), f1(r.BaselineAlarms), string(r.Risk))
	}
	b.WriteString("\n")
}

func renderUtilization(b *strings.Builder, rows []models.UtilizationYieldRow) {
	if !section(b, "Utilization vs Yield Correlation", len(rows)) {
		return
	}
	header(b, "Equipment", "Days", "Correlation")
	for _, r := range rows {
		row(b, r.EquipmentID, itoa(r.DayCount), f3(r.Correlation))
	}
	b.WriteString("\n")
}

func renderMaintenanceEffect(b *strings.Builder, rows []models.MaintenanceEffectRow) {
	if !section(b, "Maintenance Effectiveness", len(rows)) {
		return
	}
	header(b, "Event", "Equipment", "Type", "Pre Alarms/day", "Post Alarms/day", "Pre Yield %", "Post Yield %", "Effect")
	for _, r := range rows {
		row(b, r.EventID, r.EquipmentID, string(r.EventType),
			f2(r.PreAlarmRate), f2(r.PostAlarmRate),
			optPct(r.PreYieldPct), optPct(r.PostYieldPct), string(r.Effect))
	}
	b.WriteString("\n")
}

func renderCriticality(b *strings.Builder, rows []models.CriticalityRow) {
	if !section(b, "Equipment Criticality", len(rows)) {
		return
	}
	header(b, "Equipment", "Wafers", "Avg Yield %", "Down Events", "Score", "Tier")
	for _, r := range rows {
		row(b, r.EquipmentID, itoa(r.WafersProcessed), f1(r.AvgYieldPct), itoa(r.DownEvents), f1(r.Score), string(r.Tier))
	}
	b.WriteString("\n")
}

func renderBatchPairs(b *strings.Builder, rows []models.BatchPairCorrelationRow) {
	if !section(b, "Batch-to-Batch Yield Drift", len(rows)) {
		return
	}
	header(b, "Equipment", "Pairs", "Lag-1 Correlation", "Strength")
	for _, r := range rows {
		row(b, r.EquipmentID, itoa(r.PairCount), f3(r.Correlation), string(r.Strength))
	}
	b.WriteString("\n")
}

func renderSequences(b *strings.Builder, rows []models.SequenceFailureRow) {
	if !section(b, "Failing Equipment Sequences", len(rows)) {
		return
	}
	header(b, "Sequence", "Failed Wafers")
	for _, r := range rows {
		row(b, "`"+r.EquipmentSequence+"`", itoa(r.FailedWafers))
	}
	b.WriteString("\n")
}

func renderContamination(b *strings.Builder, rows []models.ContaminationRow) {
	if !section(b, "Cross-Batch Contamination Flags", len(rows)) {
		return
	}
	header(b, "Equipment", "Prev Batch", "Curr Batch", "Prev Yield %", "Curr Yield %", "Maintained", "Flag")
	for _, r := range rows {
		row(b, r.EquipmentID, r.PrevBatchID, r.CurrBatchID,
			f1(r.PrevYieldPct), f1(r.CurrYieldPct), yesNo(r.MaintenanceBetween), string(r.Flag))
	}
	b.WriteString("\n")
}

func renderLineage(b *strings.Builder, lineage []models.BatchLineage) {
	if !section(b, "Lineage of Lowest-Yield Batches", len(lineage)) {
		return
	}
	for _, batch := range lineage {
		fmt.Fprintf(b, "### Batch %s\n\n", batch.BatchID)
		fmt.Fprintf(b, "Route: `%s` (%d wafers traced)\n\n", strings.Join(batch.EquipmentSequence, " -> "), len(batch.Wafers))

		header(b, "Wafer", "Step", "Equipment", "Result", "Avg Temp C", "Avg Press Torr", "Alarms", "Last Maintenance")
		for _, wafer := range batch.Wafers {
			for _, step := range wafer.Steps {
				maint := "-"
				if step.LastMaintenance != nil {
					maint = fmt.Sprintf("%s (%s)", step.LastMaintenance.EventID,
						step.LastMaintenance.EventTimestamp.UTC().Format("2006-01-02"))
				}
				row(b, wafer.WaferID, fmt.Sprintf("%d %s", step.StepID, step.StepName),
					step.EquipmentID, string(step.PassFail),
					optPct(step.AvgTemperatureC), optFloat3(step.AvgPressureTorr),
					itoa(step.AlarmCount), maint)
			}
		}
		b.WriteString("\n")
	}
}

func optFloat3(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return f3(*v)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func itoa(v int) string { return fmt.Sprintf("%d", v) }
