package workorders

import (
	"context"
	"errors"

	"eam/pkg/metadata"
	"eam/pkg/models"
)

var ErrWorkOrderNotFound = errors.New("work order not found")

// Repository is the work order backend.
type Repository interface {
	List(ctx context.Context, t metadata.WorkOrderType) ([]models.WorkOrder, error)
	Get(ctx context.Context, id string) (models.WorkOrder, error)
	Create(ctx context.Context, wo models.WorkOrder) (models.WorkOrder, error)
	Update(ctx context.Context, id string, update models.WorkOrderUpdate) (models.WorkOrder, error)
	Submit(ctx context.Context, id, comment string, next metadata.Status) (models.WorkOrder, error)
}
