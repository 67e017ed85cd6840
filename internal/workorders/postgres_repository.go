package workorders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eam/internal/repository"
	custom_error "eam/pkg/errors"
	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const workOrdersTable = "work_orders"

// PostgresRepository stores each work order as a JSONB document with its
// list columns broken out for filtering.
type PostgresRepository struct {
	repository *repository.Repository
	now        func() time.Time
}

func NewPostgresRepository(r *repository.Repository) *PostgresRepository {
	return &PostgresRepository{repository: r, now: time.Now}
}

func (r *PostgresRepository) List(ctx context.Context, t metadata.WorkOrderType) ([]models.WorkOrder, error) {
	query := r.repository.GoquDBWrapper.
		From(workOrdersTable).
		Select("document").
		Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())
	if t != "" {
		query = query.Where(goqu.Ex{"type": string(t)})
	}

	rows, err := query.Executor().QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	defer rows.Close()

	out := make([]models.WorkOrder, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		var wo models.WorkOrder
		if err := json.Unmarshal(raw, &wo); err != nil {
			return nil, fmt.Errorf("failed to decode work order: %w", err)
		}
		out = append(out, wo)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (models.WorkOrder, error) {
	return r.get(ctx, r.repository.GoquDBWrapper, id, false)
}

type selector interface {
	From(from ...interface{}) *goqu.SelectDataset
}

func (r *PostgresRepository) get(ctx context.Context, db selector, id string, forUpdate bool) (models.WorkOrder, error) {
	query := db.From(workOrdersTable).Select("document").Where(goqu.Ex{"id": id})
	if forUpdate {
		query = query.ForUpdate(exp.Wait)
	}

	var raw []byte
	found, err := query.Executor().ScanValContext(ctx, &raw)
	if err != nil {
		return models.WorkOrder{}, fmt.Errorf("failed to fetch work order: %w", err)
	}
	if !found {
		return models.WorkOrder{}, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, id)
	}

	var wo models.WorkOrder
	if err := json.Unmarshal(raw, &wo); err != nil {
		return models.WorkOrder{}, fmt.Errorf("failed to decode work order: %w", err)
	}
	return wo, nil
}

func record(wo models.WorkOrder) (goqu.Record, error) {
	doc, err := json.Marshal(wo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode work order: %w", err)
	}
	return goqu.Record{
		"id":          wo.ID,
		"type":        string(wo.Type),
		"status":      string(wo.Status),
		"description": wo.Description,
		"asset_num":   wo.AssetNum,
		"location":    wo.Location,
		"document":    doc,
		"created_at":  wo.CreatedAt,
		"updated_at":  wo.UpdatedAt,
	}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, wo models.WorkOrder) (models.WorkOrder, error) {
	now := r.now().UTC()
	wo.CreatedAt = now
	wo.UpdatedAt = now

	rec, err := record(wo)
	if err != nil {
		return models.WorkOrder{}, err
	}

	_, err = r.repository.GoquDBWrapper.Insert(workOrdersTable).Rows(rec).Executor().ExecContext(ctx)
	if err != nil {
		return models.WorkOrder{}, custom_error.FromPQ("failed to insert work order", err)
	}
	return wo, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, update models.WorkOrderUpdate) (models.WorkOrder, error) {
	return r.modify(ctx, id, func(wo *models.WorkOrder) {
		applyUpdate(wo, update)
	})
}

func (r *PostgresRepository) Submit(ctx context.Context, id, _ string, next metadata.Status) (models.WorkOrder, error) {
	return r.modify(ctx, id, func(wo *models.WorkOrder) {
		wo.Status = next
	})
}

func (r *PostgresRepository) modify(ctx context.Context, id string, fn func(wo *models.WorkOrder)) (models.WorkOrder, error) {
	var result models.WorkOrder
	err := repository.WithTransaction(ctx, r.repository.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		wo, err := r.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		fn(&wo)
		wo.UpdatedAt = r.now().UTC()

		rec, err := record(wo)
		if err != nil {
			return err
		}
		delete(rec, "id")
		delete(rec, "created_at")

		res, err := tx.Update(workOrdersTable).Set(rec).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
		if err != nil {
			return custom_error.FromPQ("failed to update work order", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrWorkOrderNotFound, id)
		}
		result = wo
		return nil
	})
	if err != nil {
		return models.WorkOrder{}, err
	}
	return result, nil
}
