package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/kpi-service/internal/domain"
)

// KPIFilter captures listing and sweep parameters.
type KPIFilter struct {
	AssignedUserID *string
	CreatedBy      *string
	StartDateFrom  *time.Time
	EndDateTo      *time.Time
	UpdatedFrom    *time.Time
	UpdatedTo      *time.Time
	StatusTask     *domain.TaskStatus
	NotStatusTask  *domain.TaskStatus
	StatusKpi      *domain.KpiStatus
}

// KPIRepository encapsulates KPI persistence.
type KPIRepository interface {
	Create(ctx context.Context, kpi *domain.KPI) error
	// Update persists the KPI guarded by its version and, when entry is
	// non-nil, appends the history row in the same transaction. A stale
	// version yields ErrVersionConflict; a missing row yields pgx.ErrNoRows.
	Update(ctx context.Context, kpi *domain.KPI, entry *domain.KPIUpdate) error
	GetByID(ctx context.Context, id string) (*domain.KPI, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter KPIFilter) ([]domain.KPI, error)
}

type kpiRepository struct {
	pool *pgxpool.Pool
}

// NewKPIRepository instantiates repository.
func NewKPIRepository(pool *pgxpool.Pool) KPIRepository {
	return &kpiRepository{pool: pool}
}

const kpiColumns = `id, title, description, target_value, unit, actual_value, status_kpi,
               status_task, assigned_user_ids, created_by, start_date, end_date, version,
               created_at, updated_at`

func (r *kpiRepository) Create(ctx context.Context, kpi *domain.KPI) error {
	const query = `
        INSERT INTO kpis (title, description, target_value, unit, actual_value, status_kpi,
                          status_task, assigned_user_ids, created_by, start_date, end_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		kpi.Title,
		kpi.Description,
		kpi.TargetValue,
		kpi.Unit,
		kpi.ActualValue,
		kpi.StatusKpi,
		kpi.StatusTask,
		kpi.AssignedUserIDs,
		kpi.CreatedBy,
		kpi.StartDate,
		kpi.EndDate,
	).Scan(&kpi.ID, &kpi.Version, &kpi.CreatedAt, &kpi.UpdatedAt)
}

func (r *kpiRepository) Update(ctx context.Context, kpi *domain.KPI, entry *domain.KPIUpdate) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
        UPDATE kpis SET title=$1, description=$2, target_value=$3, unit=$4, actual_value=$5,
            status_kpi=$6, status_task=$7, assigned_user_ids=$8, start_date=$9, end_date=$10,
            version=version+1, updated_at=NOW()
        WHERE id=$11 AND version=$12`
		cmd, err := tx.Exec(ctx, query,
			kpi.Title,
			kpi.Description,
			kpi.TargetValue,
			kpi.Unit,
			kpi.ActualValue,
			kpi.StatusKpi,
			kpi.StatusTask,
			kpi.AssignedUserIDs,
			kpi.StartDate,
			kpi.EndDate,
			kpi.ID,
			kpi.Version,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM kpis WHERE id=$1)`, kpi.ID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrVersionConflict
			}
			return pgx.ErrNoRows
		}
		kpi.Version++
		if entry != nil {
			entry.KpiID = kpi.ID
			return insertKPIUpdate(ctx, tx, entry)
		}
		return nil
	})
}

func (r *kpiRepository) GetByID(ctx context.Context, id string) (*domain.KPI, error) {
	query := fmt.Sprintf(`SELECT %s FROM kpis WHERE id=$1`, kpiColumns)
	var kpi domain.KPI
	if err := scanKPI(r.pool.QueryRow(ctx, query, id), &kpi); err != nil {
		return nil, err
	}
	return &kpi, nil
}

func (r *kpiRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM kpis WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *kpiRepository) List(ctx context.Context, filter KPIFilter) ([]domain.KPI, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedUserID != nil {
		args = append(args, *filter.AssignedUserID)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(assigned_user_ids)", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.StartDateFrom != nil {
		args = append(args, *filter.StartDateFrom)
		clauses = append(clauses, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if filter.EndDateTo != nil {
		args = append(args, *filter.EndDateTo)
		clauses = append(clauses, fmt.Sprintf("end_date <= $%d", len(args)))
	}
	if filter.UpdatedFrom != nil {
		args = append(args, *filter.UpdatedFrom)
		clauses = append(clauses, fmt.Sprintf("updated_at >= $%d", len(args)))
	}
	if filter.UpdatedTo != nil {
		args = append(args, *filter.UpdatedTo)
		clauses = append(clauses, fmt.Sprintf("updated_at < $%d", len(args)))
	}
	if filter.StatusTask != nil {
		args = append(args, *filter.StatusTask)
		clauses = append(clauses, fmt.Sprintf("status_task=$%d", len(args)))
	}
	if filter.NotStatusTask != nil {
		args = append(args, *filter.NotStatusTask)
		clauses = append(clauses, fmt.Sprintf("status_task <> $%d", len(args)))
	}
	if filter.StatusKpi != nil {
		args = append(args, *filter.StatusKpi)
		clauses = append(clauses, fmt.Sprintf("status_kpi=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM kpis WHERE %s ORDER BY created_at DESC`,
		kpiColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.KPI
	for rows.Next() {
		var kpi domain.KPI
		if err := scanKPI(rows, &kpi); err != nil {
			return nil, err
		}
		result = append(result, kpi)
	}
	return result, rows.Err()
}

func scanKPI(row pgx.Row, kpi *domain.KPI) error {
	return row.Scan(
		&kpi.ID,
		&kpi.Title,
		&kpi.Description,
		&kpi.TargetValue,
		&kpi.Unit,
		&kpi.ActualValue,
		&kpi.StatusKpi,
		&kpi.StatusTask,
		&kpi.AssignedUserIDs,
		&kpi.CreatedBy,
		&kpi.StartDate,
		&kpi.EndDate,
		&kpi.Version,
		&kpi.CreatedAt,
		&kpi.UpdatedAt,
	)
}
