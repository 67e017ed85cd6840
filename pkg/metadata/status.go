package metadata

import (
	"fmt"
	"strings"
)

type WorkOrderType string

const (
	TypePreventive WorkOrderType = "pm"
	TypeCorrective WorkOrderType = "cm"
)

func NewWorkOrderType(value string) (WorkOrderType, error) {
	t := WorkOrderType(strings.ToLower(strings.TrimSpace(value)))
	switch t {
	case TypePreventive, TypeCorrective:
		return t, nil
	default:
		return "", fmt.Errorf("invalid work order type: %s", value)
	}
}

type Status string

// Preventive maintenance work orders follow the Maximo status codes.
const (
	StatusWaitingApproval Status = "WAPPR"
	StatusApproved        Status = "APPR"
	StatusInProgress      Status = "INPRG"
	StatusCompleted       Status = "COMP"
	StatusClosed          Status = "CLOSE"
	StatusCancelled       Status = "CAN"
)

// Corrective maintenance reports use their own lower case vocabulary.
const (
	CMStatusWaitingApproval Status = "waiting_approval"
	CMStatusApproved        Status = "approved"
	CMStatusInProgress      Status = "in_progress"
	CMStatusCompleted       Status = "completed"
	CMStatusClosed          Status = "closed"
	CMStatusRejected        Status = "rejected"
)

// Transition describes what submitting a work order in a given status does.
type Transition struct {
	From               Status `json:"from"`
	To                 Status `json:"to"`
	Action             string `json:"action"`
	RequiresComment    bool   `json:"requiresComment"`
	RequiresValidation bool   `json:"requiresValidation"`
}

var workflows = map[WorkOrderType][]Transition{
	TypePreventive: {
		{From: StatusWaitingApproval, To: StatusApproved, Action: "approve"},
		{From: StatusApproved, To: StatusInProgress, Action: "start"},
		{From: StatusInProgress, To: StatusCompleted, Action: "complete", RequiresComment: true, RequiresValidation: true},
		{From: StatusCompleted, To: StatusClosed, Action: "close", RequiresComment: true},
	},
	TypeCorrective: {
		{From: CMStatusWaitingApproval, To: CMStatusApproved, Action: "approve"},
		{From: CMStatusApproved, To: CMStatusInProgress, Action: "start"},
		{From: CMStatusInProgress, To: CMStatusCompleted, Action: "complete", RequiresComment: true, RequiresValidation: true},
		{From: CMStatusCompleted, To: CMStatusClosed, Action: "close", RequiresComment: true},
	},
}

var editable = map[Status]bool{
	StatusWaitingApproval:   true,
	StatusApproved:          true,
	StatusInProgress:        true,
	CMStatusWaitingApproval: true,
	CMStatusApproved:        true,
	CMStatusInProgress:      true,
}

func NewStatus(t WorkOrderType, value string) (Status, error) {
	status := Status(strings.TrimSpace(value))
	if !status.isValid(t) {
		return "", fmt.Errorf("invalid %s status: %s", t, value)
	}
	return status, nil
}

func (s Status) isValid(t WorkOrderType) bool {
	switch t {
	case TypePreventive:
		switch s {
		case StatusWaitingApproval, StatusApproved, StatusInProgress, StatusCompleted, StatusClosed, StatusCancelled:
			return true
		}
	case TypeCorrective:
		switch s {
		case CMStatusWaitingApproval, CMStatusApproved, CMStatusInProgress, CMStatusCompleted, CMStatusClosed, CMStatusRejected:
			return true
		}
	}
	return false
}

// IsEditable reports whether drafts of a work order in this status may be saved.
func (s Status) IsEditable() bool {
	return editable[s]
}

// NextTransition returns the transition a submit performs from status s.
func NextTransition(t WorkOrderType, s Status) (Transition, bool) {
	for _, tr := range workflows[t] {
		if tr.From == s {
			return tr, true
		}
	}
	return Transition{}, false
}

// InitialStatus is the status newly created work orders start in.
func InitialStatus(t WorkOrderType) Status {
	if t == TypeCorrective {
		return CMStatusWaitingApproval
	}
	return StatusWaitingApproval
}

func (s Status) String() string {
	return string(s)
}
