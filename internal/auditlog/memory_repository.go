package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"eam/pkg/models"
)

// MemoryRepository keeps audit entries in process when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []models.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) PersistLog(_ context.Context, auditlog models.AuditLog, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	auditlog.ID = len(r.entries) + 1
	auditlog.DataRaw = string(raw)
	auditlog.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, auditlog)
	return nil
}

func (r *MemoryRepository) GetResourceLog(_ context.Context, id string, resourceType string) ([]models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AuditLog, 0)
	for _, e := range r.entries {
		if e.ResourceID == id && e.ResourceType == resourceType {
			e.LoadFromDB()
			out = append(out, e)
		}
	}
	return out, nil
}
