package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// ProcessStepRepository defines the interface for process route master data.
type ProcessStepRepository interface {
	Upsert(ctx context.Context, steps []models.ProcessStep) error
	ListAll(ctx context.Context) ([]models.ProcessStep, error)
}

type processStepRepository struct {
	db *database.DB
}

// NewProcessStepRepository creates a new process step repository.
func NewProcessStepRepository(db *database.DB) ProcessStepRepository {
	return &processStepRepository{db: db}
}

func (r *processStepRepository) Upsert(ctx context.Context, steps []models.ProcessStep) error {
	if len(steps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO process_steps (step_id, name, equipment_type, duration_min)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (step_id) DO UPDATE SET
			name = EXCLUDED.name,
			equipment_type = EXCLUDED.equipment_type,
			duration_min = EXCLUDED.duration_min`

	for _, st := range steps {
		batch.Queue(query, st.StepID, st.Name, st.EquipmentType, st.DurationMin)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range steps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert process step: %w", err)
		}
	}
	return nil
}

func (r *processStepRepository) ListAll(ctx context.Context) ([]models.ProcessStep, error) {
	query := `SELECT step_id, name, equipment_type, duration_min FROM process_steps ORDER BY step_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query process steps: %w", err)
	}
	defer rows.Close()

	var steps []models.ProcessStep
	for rows.Next() {
		var st models.ProcessStep
		if err := rows.Scan(&st.StepID, &st.Name, &st.EquipmentType, &st.DurationMin); err != nil {
			return nil, fmt.Errorf("failed to scan process step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate process steps: %w", err)
	}
	return steps, nil
}
