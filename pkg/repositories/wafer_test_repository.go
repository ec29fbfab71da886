package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// WaferTestRepository defines the interface for wafer test data access.
type WaferTestRepository interface {
	// Upsert inserts or replaces a batch of wafer test records keyed by
	// (wafer_id, process_step_id).
	Upsert(ctx context.Context, tests []models.WaferTest) error

	// ListAll retrieves every wafer test record.
	ListAll(ctx context.Context) ([]models.WaferTest, error)
}

type waferTestRepository struct {
	db *database.DB
}

// NewWaferTestRepository creates a new wafer test repository.
func NewWaferTestRepository(db *database.DB) WaferTestRepository {
	return &waferTestRepository{db: db}
}

func (r *waferTestRepository) Upsert(ctx context.Context, tests []models.WaferTest) error {
	if len(tests) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO wafer_tests (
			wafer_id, batch_id, process_step_id, process_step_name, equipment_id,
			start_time, end_time, pass_fail, defect_density, bin_code, test_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (wafer_id, process_step_id) DO UPDATE SET
			batch_id = EXCLUDED.batch_id,
			process_step_name = EXCLUDED.process_step_name,
			equipment_id = EXCLUDED.equipment_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			pass_fail = EXCLUDED.pass_fail,
			defect_density = EXCLUDED.defect_density,
			bin_code = EXCLUDED.bin_code,
			test_timestamp = EXCLUDED.test_timestamp`

	for _, t := range tests {
		batch.Queue(query,
			t.WaferID, t.BatchID, t.ProcessStepID, t.ProcessStepName, t.EquipmentID,
			t.StartTime, t.EndTime, t.PassFail, t.DefectDensity, t.BinCode, t.TestTimestamp,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range tests {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert wafer test: %w", err)
		}
	}
	return nil
}

func (r *waferTestRepository) ListAll(ctx context.Context) ([]models.WaferTest, error) {
	query := `
		SELECT wafer_id, batch_id, process_step_id, process_step_name, equipment_id,
			start_time, end_time, pass_fail, defect_density, bin_code, test_timestamp
		FROM wafer_tests`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query wafer tests: %w", err)
	}
	defer rows.Close()

	var tests []models.WaferTest
	for rows.Next() {
		var t models.WaferTest
		if err := rows.Scan(
			&t.WaferID, &t.BatchID, &t.ProcessStepID, &t.ProcessStepName, &t.EquipmentID,
			&t.StartTime, &t.EndTime, &t.PassFail, &t.DefectDensity, &t.BinCode, &t.TestTimestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wafer test: %w", err)
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wafer tests: %w", err)
	}
	return tests, nil
}
