package workorders

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"eam/pkg/metadata"
	"eam/pkg/models"
)

// MemoryRepository keeps work orders in process. Values are deep copied in
// and out so callers never share state with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]models.WorkOrder
	now    func() time.Time
}

func NewMemoryRepository(seed []models.WorkOrder) *MemoryRepository {
	r := &MemoryRepository{orders: make(map[string]models.WorkOrder, len(seed)), now: time.Now}
	for _, wo := range seed {
		r.orders[wo.ID] = clone(wo)
	}
	return r
}

func clone(wo models.WorkOrder) models.WorkOrder {
	raw, err := json.Marshal(wo)
	if err != nil {
		return wo
	}
	var out models.WorkOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return wo
	}
	return out
}

func (r *MemoryRepository) List(_ context.Context, t metadata.WorkOrderType) ([]models.WorkOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.WorkOrder, 0, len(r.orders))
	for _, wo := range r.orders {
		if t == "" || wo.Type == t {
			out = append(out, clone(wo))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (models.WorkOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wo, ok := r.orders[id]
	if !ok {
		return models.WorkOrder{}, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, id)
	}
	return clone(wo), nil
}

func (r *MemoryRepository) Create(_ context.Context, wo models.WorkOrder) (models.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[wo.ID]; exists {
		return models.WorkOrder{}, fmt.Errorf("work order %s already exists", wo.ID)
	}
	now := r.now()
	wo.CreatedAt = now
	wo.UpdatedAt = now
	r.orders[wo.ID] = clone(wo)
	return clone(wo), nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, update models.WorkOrderUpdate) (models.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wo, ok := r.orders[id]
	if !ok {
		return models.WorkOrder{}, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, id)
	}
	applyUpdate(&wo, update)
	wo.UpdatedAt = r.now()
	r.orders[id] = clone(wo)
	return clone(wo), nil
}

func (r *MemoryRepository) Submit(_ context.Context, id, _ string, next metadata.Status) (models.WorkOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wo, ok := r.orders[id]
	if !ok {
		return models.WorkOrder{}, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, id)
	}
	wo.Status = next
	wo.UpdatedAt = r.now()
	r.orders[id] = clone(wo)
	return clone(wo), nil
}

// applyUpdate writes the editable parts of update onto wo. Resource rows
// tagged delete in the delta are dropped, the rest lose their status tag.
func applyUpdate(wo *models.WorkOrder, update models.WorkOrderUpdate) {
	wo.Staff = update.Staff
	wo.TimeWindow = update.TimeWindow
	wo.Fields = map[string]string{}
	for k, v := range update.Fields {
		if v != "" {
			wo.Fields[k] = v
		}
	}
	if update.CheckItems != nil {
		wo.CheckItems = update.CheckItems
	}

	lines := make([]models.ResourceLine, 0)
	for _, line := range update.Resources.Lines() {
		line.Status = ""
		lines = append(lines, line)
	}
	wo.Resources = models.ResourcesFromLines(lines)
}
