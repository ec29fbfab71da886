package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// timeLayouts are tried in order when parsing timestamps. The second form
// covers exports from tools that write naive datetimes.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// ReadWaferTests parses a wafer test results CSV.
func ReadWaferTests(path string) ([]models.WaferTest, error) {
	var tests []models.WaferTest
	err := readCSV(path, func(row *rowReader) error {
		t := models.WaferTest{
			WaferID:         row.str("wafer_id"),
			BatchID:         row.str("batch_id"),
			ProcessStepID:   row.integer("process_step_id"),
			ProcessStepName: row.str("process_step_name"),
			EquipmentID:     row.str("equipment_id"),
			StartTime:       row.timestamp("start_time"),
			EndTime:         row.timestamp("end_time"),
			PassFail:        models.PassFail(row.str("pass_fail")),
			DefectDensity:   row.float("defect_density"),
			BinCode:         row.str("bin_code"),
			TestTimestamp:   row.timestamp("test_timestamp"),
		}
		if err := row.err(); err != nil {
			return err
		}
		tests = append(tests, t)
		return nil
	})
	return tests, err
}

// ReadBatches parses a wafer batches CSV.
func ReadBatches(path string) ([]models.Batch, error) {
	var batches []models.Batch
	err := readCSV(path, func(row *rowReader) error {
		b := models.Batch{
			BatchID:           row.str("batch_id"),
			LotNumber:         row.str("lot_number"),
			Recipe:            row.str("recipe"),
			StartTime:         row.timestamp("start_time"),
			EndTime:           row.timestamp("end_time"),
			EquipmentSequence: row.str("equipment_sequence"),
			WaferCount:        row.integer("wafer_count"),
		}
		if err := row.err(); err != nil {
			return err
		}
		batches = append(batches, b)
		return nil
	})
	return batches, err
}

// ReadEquipment parses an equipment master CSV.
func ReadEquipment(path string) ([]models.Equipment, error) {
	var equipment []models.Equipment
	err := readCSV(path, func(row *rowReader) error {
		e := models.Equipment{
			EquipmentID:   row.str("equipment_id"),
			EquipmentType: row.str("equipment_type"),
			Manufacturer:  row.str("manufacturer"),
			InstallDate:   row.timestamp("install_date"),
			Status:        models.EquipmentStatus(row.str("status")),
		}
		if err := row.err(); err != nil {
			return err
		}
		equipment = append(equipment, e)
		return nil
	})
	return equipment, err
}

// ReadProcessSteps parses a process route CSV.
func ReadProcessSteps(path string) ([]models.ProcessStep, error) {
	var steps []models.ProcessStep
	err := readCSV(path, func(row *rowReader) error {
		st := models.ProcessStep{
			StepID:        row.integer("step_id"),
			Name:          row.str("name"),
			EquipmentType: row.str("equipment_type"),
			DurationMin:   row.integer("duration_min"),
		}
		if err := row.err(); err != nil {
			return err
		}
		steps = append(steps, st)
		return nil
	})
	return steps, err
}

// ReadEquipmentEvents parses an equipment sensor log CSV. An empty
// rf_power_w column stays nil; it is not a zero reading.
func ReadEquipmentEvents(path string) ([]models.EquipmentEvent, error) {
	var events []models.EquipmentEvent
	err := readCSV(path, func(row *rowReader) error {
		ev := models.EquipmentEvent{
			EquipmentID:        row.str("equipment_id"),
			EventTimestamp:     row.timestamp("event_timestamp"),
			Status:             models.EventStatus(row.str("status")),
			TemperatureC:       row.float("temperature_c"),
			PressureTorr:       row.float("pressure_torr"),
			RFPowerW:           row.optionalFloat("rf_power_w"),
			IngestionTimestamp: row.timestamp("ingestion_timestamp"),
		}
		if err := row.err(); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	return events, err
}

// ReadMaintenanceEvents parses a maintenance log CSV.
func ReadMaintenanceEvents(path string) ([]models.MaintenanceEvent, error) {
	var events []models.MaintenanceEvent
	err := readCSV(path, func(row *rowReader) error {
		m := models.MaintenanceEvent{
			EventID:        row.str("event_id"),
			EquipmentID:    row.str("equipment_id"),
			EventType:      models.MaintenanceType(row.str("event_type")),
			EventTimestamp: row.timestamp("event_timestamp"),
			DurationHours:  row.float("duration_hours"),
			PartsReplaced:  row.str("parts_replaced"),
			TechnicianID:   row.str("technician_id"),
		}
		if err := row.err(); err != nil {
			return err
		}
		events = append(events, m)
		return nil
	})
	return events, err
}

// ============================================================================
// CSV plumbing
// ============================================================================

// rowReader gives named-column access to one CSV record. Parse errors stick;
// callers check err() once per row.
type rowReader struct {
	columns  map[string]int
	record   []string
	line     int
	firstErr error
}

func (r *rowReader) str(column string) string {
	idx, ok := r.columns[column]
	if !ok {
		r.fail(fmt.Errorf("missing column %q", column))
		return ""
	}
	return r.record[idx]
}

func (r *rowReader) integer(column string) int {
	raw := r.str(column)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(fmt.Errorf("column %q: %w", column, err))
	}
	return v
}

func (r *rowReader) float(column string) float64 {
	raw := r.str(column)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.fail(fmt.Errorf("column %q: %w", column, err))
	}
	return v
}

func (r *rowReader) optionalFloat(column string) *float64 {
	raw := r.str(column)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.fail(fmt.Errorf("column %q: %w", column, err))
		return nil
	}
	return &v
}

func (r *rowReader) timestamp(column string) time.Time {
	raw := r.str(column)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	r.fail(fmt.Errorf("column %q: unparseable timestamp %q", column, raw))
	return time.Time{}
}

func (r *rowReader) fail(err error) {
	if r.firstErr == nil {
		r.firstErr = fmt.Errorf("line %d: %w", r.line, err)
	}
}

func (r *rowReader) err() error { return r.firstErr }

func readCSV(path string, handle func(*rowReader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		line++

		row := &rowReader{columns: columns, record: record, line: line}
		if err := handle(row); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}
