package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/luyangsi/semiconductors-data-platform/pkg/apperrors"
	"github.com/luyangsi/semiconductors-data-platform/pkg/database"
)

// WatermarkRepository tracks the ingestion high-water mark per source so
// incremental loads only pick up records that arrived since the last run.
type WatermarkRepository interface {
	// Get returns the watermark for a source, or apperrors.ErrNoWatermark if
	// the source has never been ingested.
	Get(ctx context.Context, source string) (time.Time, error)

	// Set records the watermark for a source, creating it if absent.
	Set(ctx context.Context, source string, watermark time.Time) error
}

type watermarkRepository struct {
	db *database.DB
}

// NewWatermarkRepository creates a new watermark repository.
func NewWatermarkRepository(db *database.DB) WatermarkRepository {
	return &watermarkRepository{db: db}
}

func (r *watermarkRepository) Get(ctx context.Context, source string) (time.Time, error) {
	var watermark time.Time
	err := r.db.QueryRow(ctx,
		"SELECT watermark FROM ingest_watermarks WHERE source = $1", source,
	).Scan(&watermark)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, apperrors.ErrNoWatermark
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark for %s: %w", source, err)
	}
	return watermark, nil
}

func (r *watermarkRepository) Set(ctx context.Context, source string, watermark time.Time) error {
	query := `
		INSERT INTO ingest_watermarks (source, watermark, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (source) DO UPDATE SET
			watermark = EXCLUDED.watermark,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, source, watermark); err != nil {
		return fmt.Errorf("failed to set watermark for %s: %w", source, err)
	}
	return nil
}
