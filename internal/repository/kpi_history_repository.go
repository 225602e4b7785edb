package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/kpi-service/internal/domain"
)

// KPIHistoryRepository stores the append-only audit trail. Entries are also
// written through KPIRepository.Update so they share the KPI transaction.
type KPIHistoryRepository interface {
	Create(ctx context.Context, entry *domain.KPIUpdate) error
	ListByKpi(ctx context.Context, kpiID string) ([]domain.KPIUpdate, error)
}

type kpiHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewKPIHistoryRepository builds repository.
func NewKPIHistoryRepository(pool *pgxpool.Pool) KPIHistoryRepository {
	return &kpiHistoryRepository{pool: pool}
}

func (r *kpiHistoryRepository) Create(ctx context.Context, entry *domain.KPIUpdate) error {
	return insertKPIUpdate(ctx, r.pool, entry)
}

func insertKPIUpdate(ctx context.Context, db DBTX, entry *domain.KPIUpdate) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO kpi_updates (kpi_id, updated_by, action, changes, comment)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return db.QueryRow(ctx, query,
		entry.KpiID,
		entry.UpdatedBy,
		entry.Action,
		changes,
		entry.Comment,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *kpiHistoryRepository) ListByKpi(ctx context.Context, kpiID string) ([]domain.KPIUpdate, error) {
	const query = `
        SELECT id, kpi_id, updated_by, action, changes, comment, created_at
        FROM kpi_updates WHERE kpi_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, kpiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.KPIUpdate
	for rows.Next() {
		var entry domain.KPIUpdate
		var changes []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.KpiID,
			&entry.UpdatedBy,
			&entry.Action,
			&changes,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, err
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
