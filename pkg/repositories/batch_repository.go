package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// BatchRepository defines the interface for production batch data access.
type BatchRepository interface {
	Upsert(ctx context.Context, batches []models.Batch) error
	ListAll(ctx context.Context) ([]models.Batch, error)
}

type batchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *database.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Upsert(ctx context.Context, batches []models.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO batches (
			batch_id, lot_number, recipe, start_time, end_time, equipment_sequence, wafer_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (batch_id) DO UPDATE SET
			lot_number = EXCLUDED.lot_number,
			recipe = EXCLUDED.recipe,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			equipment_sequence = EXCLUDED.equipment_sequence,
			wafer_count = EXCLUDED.wafer_count`

	for _, b := range batches {
		batch.Queue(query,
			b.BatchID, b.LotNumber, b.Recipe, b.StartTime, b.EndTime, b.EquipmentSequence, b.WaferCount,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range batches {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert batch: %w", err)
		}
	}
	return nil
}

func (r *batchRepository) ListAll(ctx context.Context) ([]models.Batch, error) {
	query := `
		SELECT batch_id, lot_number, recipe, start_time, end_time, equipment_sequence, wafer_count
		FROM batches`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		var b models.Batch
		if err := rows.Scan(
			&b.BatchID, &b.LotNumber, &b.Recipe, &b.StartTime, &b.EndTime, &b.EquipmentSequence, &b.WaferCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batches: %w", err)
	}
	return batches, nil
}
