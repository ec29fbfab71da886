package simulate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// File names match what the ingest layer expects to find in the data
// directory.
const (
	EquipmentFile   = "equipment_master.csv"
	ProcessStepFile = "process_steps.csv"
	EventFile       = "equipment_logs.csv"
	BatchFile       = "wafer_batches.csv"
	TestFile        = "test_results.csv"
	MaintenanceFile = "maintenance_events.csv"
)

// WriteCSV writes the dataset as one CSV file per table under dir.
func WriteCSV(ds *Dataset, dir string, logger *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	writers := []struct {
		file  string
		write func(*csv.Writer) error
	}{
		{EquipmentFile, func(w *csv.Writer) error { return writeEquipment(w, ds) }},
		{ProcessStepFile, func(w *csv.Writer) error { return writeProcessSteps(w, ds) }},
		{EventFile, func(w *csv.Writer) error { return writeEvents(w, ds) }},
		{BatchFile, func(w *csv.Writer) error { return writeBatches(w, ds) }},
		{TestFile, func(w *csv.Writer) error { return writeTests(w, ds) }},
		{MaintenanceFile, func(w *csv.Writer) error { return writeMaintenance(w, ds) }},
	}

	for _, out := range writers {
		if err := writeFile(filepath.Join(dir, out.file), out.write); err != nil {
			return err
		}
		logger.Info("wrote data file", zap.String("file", out.file))
	}
	return nil
}

func writeFile(path string, write func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

func writeEquipment(w *csv.Writer, ds *Dataset) error {
	if err := w.Write([]string{"equipment_id", "equipment_type", "manufacturer", "install_date", "status"}); err != nil {
		return err
	}
	for _, eq := range ds.Equipment {
		row := []string{
			eq.EquipmentID, eq.EquipmentType, eq.Manufacturer,
			formatTime(eq.InstallDate), string(eq.Status),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeProcessSteps(w *csv.Writer, ds *Dataset) error {
	if err := w.Write([]string{"step_id", "name", "equipment_type", "duration_min"}); err != nil {
		return err
	}
	for _, st := range ds.ProcessSteps {
		row := []string{
			strconv.Itoa(st.StepID), st.Name, st.EquipmentType, strconv.Itoa(st.DurationMin),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeEvents(w *csv.Writer, ds *Dataset) error {
	header := []string{
		"equipment_id", "event_timestamp", "status", "temperature_c",
		"pressure_torr", "rf_power_w", "ingestion_timestamp",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, ev := range ds.EquipmentEvents {
		rfPower := ""
		if ev.RFPowerW != nil {
			rfPower = formatFloat(*ev.RFPowerW)
		}
		row := []string{
			ev.EquipmentID, formatTime(ev.EventTimestamp), string(ev.Status),
			formatFloat(ev.TemperatureC), formatFloat(ev.PressureTorr),
			rfPower, formatTime(ev.IngestionTimestamp),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeBatches(w *csv.Writer, ds *Dataset) error {
	header := []string{
		"batch_id", "lot_number", "recipe", "start_time", "end_time",
		"equipment_sequence", "wafer_count",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, b := range ds.Batches {
		row := []string{
			b.BatchID, b.LotNumber, b.Recipe,
			formatTime(b.StartTime), formatTime(b.EndTime),
			b.EquipmentSequence, strconv.Itoa(b.WaferCount),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeTests(w *csv.Writer, ds *Dataset) error {
	header := []string{
		"wafer_id", "batch_id", "process_step_id", "process_step_name",
		"equipment_id", "start_time", "end_time", "pass_fail",
		"defect_density", "bin_code", "test_timestamp",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range ds.WaferTests {
		row := []string{
			t.WaferID, t.BatchID, strconv.Itoa(t.ProcessStepID), t.ProcessStepName,
			t.EquipmentID, formatTime(t.StartTime), formatTime(t.EndTime), string(t.PassFail),
			formatFloat(t.DefectDensity), t.BinCode, formatTime(t.TestTimestamp),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeMaintenance(w *csv.Writer, ds *Dataset) error {
	header := []string{
		"event_id", "equipment_id", "event_type", "event_timestamp",
		"duration_hours", "parts_replaced", "technician_id",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, m := range ds.MaintenanceEvents {
		row := []string{
			m.EventID, m.EquipmentID, string(m.EventType), formatTime(m.EventTimestamp),
			formatFloat(m.DurationHours), m.PartsReplaced, m.TechnicianID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
