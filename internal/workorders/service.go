package workorders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eam/pkg/auditlog"
	custom_error "eam/pkg/errors"
	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrStatusConflict  = errors.New("work order status changed")
	ErrCommentRequired = errors.New("a comment is required for this action")
	ErrNoTransition    = errors.New("work order cannot be submitted from its current status")
	ErrNotEditable     = errors.New("work order status does not allow editing")
)

type Service struct {
	repo   Repository
	audit  *auditlog.Auditlog
	logger *zap.Logger
	newID  func() string
}

func NewService(repo Repository, audit *auditlog.Auditlog, logger *zap.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, newID: newCMID}
}

func newCMID() string {
	return "CM" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *Service) List(ctx context.Context, t metadata.WorkOrderType) ([]models.WorkOrderSummary, error) {
	orders, err := s.repo.List(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([]models.WorkOrderSummary, 0, len(orders))
	for i := range orders {
		out = append(out, orders[i].Summary())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.WorkOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id string) ([]models.AuditLog, error) {
	wo := models.WorkOrder{ID: id}
	return s.audit.History(ctx, &wo)
}

// CreateCM files a new corrective maintenance report awaiting approval.
func (s *Service) CreateCM(ctx context.Context, req models.CreateCMRequest) (models.WorkOrder, error) {
	var v custom_error.ValidationErrors
	if strings.TrimSpace(req.EquipmentID) == "" {
		v.Add("equipmentId", "equipment is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		v.Add("description", "description is required")
	}
	abnormal, err := metadata.NewAbnormalType(req.AbnormalType)
	if err != nil {
		v.Add("abnormalType", err.Error())
	}
	if err := v.Err(); err != nil {
		return models.WorkOrder{}, err
	}

	wo := models.WorkOrder{
		ID:           s.newID(),
		Type:         metadata.TypeCorrective,
		Status:       metadata.InitialStatus(metadata.TypeCorrective),
		Description:  strings.TrimSpace(req.Description),
		AssetNum:     strings.TrimSpace(req.EquipmentID),
		Location:     req.Location,
		Reporter:     req.Reporter,
		AbnormalType: abnormal.String(),
		Fields:       map[string]string{},
		CheckItems:   []models.ChecklistItem{},
		Resources:    models.ResourcesFromLines(nil),
	}

	created, err := s.repo.Create(ctx, wo)
	if err != nil {
		return models.WorkOrder{}, fmt.Errorf("create corrective work order: %w", err)
	}

	s.audit.Log(ctx, "create", req, &created)
	s.logger.Info("corrective work order created",
		zap.String("wonum", created.ID),
		zap.String("equipment", created.AssetNum))

	return created, nil
}

// Save persists the editable parts of a work order.
func (s *Service) Save(ctx context.Context, id string, update models.WorkOrderUpdate) (models.WorkOrder, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if !current.Status.IsEditable() {
		return models.WorkOrder{}, fmt.Errorf("%w: %s", ErrNotEditable, current.Status)
	}

	saved, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return models.WorkOrder{}, err
	}

	s.audit.Log(ctx, "save", map[string]interface{}{
		"resourceDelta": update.Delta,
		"checkItems":    len(update.CheckItems),
	}, &saved)

	return saved, nil
}

// Submit moves a work order one step along its workflow. currentStatus is
// the status the caller saw; a mismatch means someone else acted first.
func (s *Service) Submit(ctx context.Context, id string, req models.SubmitRequest) (models.WorkOrder, error) {
	wo, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if string(wo.Status) != strings.TrimSpace(req.CurrentStatus) {
		return models.WorkOrder{}, fmt.Errorf("%w: expected %s, found %s", ErrStatusConflict, req.CurrentStatus, wo.Status)
	}

	tr, ok := metadata.NextTransition(wo.Type, wo.Status)
	if !ok {
		return models.WorkOrder{}, fmt.Errorf("%w: %s", ErrNoTransition, wo.Status)
	}
	if tr.RequiresValidation {
		if err := ValidateCompletion(wo); err != nil {
			return models.WorkOrder{}, err
		}
	}
	if tr.RequiresComment && strings.TrimSpace(req.Comment) == "" {
		return models.WorkOrder{}, ErrCommentRequired
	}

	submitted, err := s.repo.Submit(ctx, id, req.Comment, tr.To)
	if err != nil {
		return models.WorkOrder{}, err
	}

	s.audit.Log(ctx, "submit", map[string]interface{}{
		"from":    tr.From,
		"to":      tr.To,
		"action":  tr.Action,
		"comment": req.Comment,
	}, &submitted)

	return submitted, nil
}

// ValidateCompletion reports every required field missing before a work
// order may be completed.
func ValidateCompletion(wo models.WorkOrder) error {
	var v custom_error.ValidationErrors
	if wo.TimeWindow.Start == nil || wo.TimeWindow.End == nil {
		v.Add("timeWindow", "start and end date")
	}
	if strings.TrimSpace(wo.Staff.Owner) == "" {
		v.Add("owner", "owner")
	}
	if strings.TrimSpace(wo.Staff.Lead) == "" {
		v.Add("lead", "lead")
	}
	if strings.TrimSpace(wo.Staff.Supervisor) == "" {
		v.Add("supervisor", "supervisor")
	}
	if len(wo.Resources.Labor) == 0 {
		v.Add("labor", "at least one labor record")
	}
	return v.Err()
}
