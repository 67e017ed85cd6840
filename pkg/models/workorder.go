package models

import (
	"time"

	"eam/pkg/metadata"
)

// WorkOrder is the shared header of preventive and corrective work orders
// together with the parts a technician reports against.
type WorkOrder struct {
	ID           string                 `json:"id" db:"id"`
	Type         metadata.WorkOrderType `json:"type" db:"type"`
	Status       metadata.Status        `json:"status" db:"status"`
	Description  string                 `json:"description" db:"description"`
	AssetNum     string                 `json:"assetNum,omitempty"`
	AssetName    string                 `json:"assetName,omitempty"`
	Location     string                 `json:"location,omitempty"`
	Reporter     string                 `json:"reporter,omitempty"`
	AbnormalType string                 `json:"abnormalType,omitempty"`
	Route        *Route                 `json:"route,omitempty"`
	Staff        Staff                  `json:"staff"`
	TimeWindow   TimeWindow             `json:"timeWindow"`
	Fields       map[string]string      `json:"fields,omitempty"`
	CheckItems   []ChecklistItem        `json:"checkItems"`
	ReportItems  []ReportItem           `json:"reportItems,omitempty"`
	Resources    Resources              `json:"resources"`
	CreatedAt    time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time              `json:"updatedAt" db:"updated_at"`
}

type Route struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Staff struct {
	Owner       string   `json:"owner"`
	Lead        string   `json:"lead"`
	Supervisor  string   `json:"supervisor"`
	Technicians []string `json:"technicians,omitempty"`
}

type TimeWindow struct {
	Start *time.Time `json:"startDate,omitempty"`
	End   *time.Time `json:"endDate,omitempty"`
}

// ReportItem is a named sub task of a work report.
type ReportItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// WorkOrderSummary is the list view of a work order.
type WorkOrderSummary struct {
	ID          string                 `json:"id" db:"id"`
	Type        metadata.WorkOrderType `json:"type" db:"type"`
	Status      metadata.Status        `json:"status" db:"status"`
	Description string                 `json:"description" db:"description"`
	AssetNum    string                 `json:"assetNum" db:"asset_num"`
	Location    string                 `json:"location" db:"location"`
	UpdatedAt   time.Time              `json:"updatedAt" db:"updated_at"`
}

func (w *WorkOrder) Summary() WorkOrderSummary {
	return WorkOrderSummary{
		ID:          w.ID,
		Type:        w.Type,
		Status:      w.Status,
		Description: w.Description,
		AssetNum:    w.AssetNum,
		Location:    w.Location,
		UpdatedAt:   w.UpdatedAt,
	}
}

// WorkOrderUpdate carries the editable parts of a work order persisted on save.
type WorkOrderUpdate struct {
	Staff      Staff             `json:"staff"`
	TimeWindow TimeWindow        `json:"timeWindow"`
	Fields     map[string]string `json:"fields"`
	CheckItems []ChecklistItem   `json:"checkItems"`
	Resources  Resources         `json:"resources"`
	Delta      []ResourceLine    `json:"resourceDelta,omitempty"`
}

// CreateCMRequest is the body of the corrective maintenance report form.
type CreateCMRequest struct {
	EquipmentID  string `json:"equipmentId" binding:"required"`
	Description  string `json:"description" binding:"required"`
	AbnormalType string `json:"abnormalType" binding:"required"`
	Location     string `json:"location"`
	Reporter     string `json:"reporter"`
}

type SubmitRequest struct {
	Comment       string `json:"comment"`
	CurrentStatus string `json:"currentStatus" binding:"required"`
}

func (w *WorkOrder) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   w.ID,
		ResourceType: "work_order",
	}
}
