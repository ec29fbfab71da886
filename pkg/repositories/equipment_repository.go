package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
	"github.com/luyangsi/semiconductors-data-platform/pkg/models"
)

// EquipmentRepository defines the interface for equipment master data access.
type EquipmentRepository interface {
	Upsert(ctx context.Context, equipment []models.Equipment) error
	ListAll(ctx context.Context) ([]models.Equipment, error)
}

type equipmentRepository struct {
	db *database.DB
}

// NewEquipmentRepository creates a new equipment repository.
func NewEquipmentRepository(db *database.DB) EquipmentRepository {
	return &equipmentRepository{db: db}
}

func (r *equipmentRepository) Upsert(ctx context.Context, equipment []models.Equipment) error {
	if len(equipment) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO equipment (
			equipment_id, equipment_type, manufacturer, install_date, status
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (equipment_id) DO UPDATE SET
			equipment_type = EXCLUDED.equipment_type,
			manufacturer = EXCLUDED.manufacturer,
			install_date = EXCLUDED.install_date,
			status = EXCLUDED.status`

	for _, e := range equipment {
		batch.Queue(query, e.EquipmentID, e.EquipmentType, e.Manufacturer, e.InstallDate, e.Status)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range equipment {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert equipment: %w", err)
		}
	}
	return nil
}

func (r *equipmentRepository) ListAll(ctx context.Context) ([]models.Equipment, error) {
	query := `
		SELECT equipment_id, equipment_type, manufacturer, install_date, status
		FROM equipment`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	var equipment []models.Equipment
	for rows.Next() {
		var e models.Equipment
		if err := rows.Scan(&e.EquipmentID, &e.EquipmentType, &e.Manufacturer, &e.InstallDate, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		equipment = append(equipment, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate equipment: %w", err)
	}
	return equipment, nil
}
