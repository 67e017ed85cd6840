package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	custom_error "eam/pkg/errors"
	"eam/pkg/models"
)

var (
	ErrNotDeletable = errors.New("resource kind cannot be removed")
	ErrLineNotFound = errors.New("resource line not found")
	ErrUnknownKind  = errors.New("unknown resource kind")
)

// State is the serializable diff state kept in a work order draft.
type State struct {
	Lines    []models.ResourceLine `json:"lines"`
	Snapshot string                `json:"snapshot"`
	Deleted  []models.ResourceLine `json:"deleted"`
	Delta    []models.ResourceLine `json:"delta"`
	HasNew   bool                  `json:"hasNew"`
	Seq      int                   `json:"seq"`
}

// NewState starts tracking server provided resources. They form the first
// snapshot so they diff as updates.
func NewState(r models.Resources) *State {
	lines := r.Lines()
	for i := range lines {
		lines[i].Status = ""
	}
	s := &State{Lines: lines, Deleted: []models.ResourceLine{}, Delta: []models.ResourceLine{}}
	s.Snapshot = serialize(lines)
	return s
}

type AddInput struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Custom   bool    `json:"custom"`
}

type Listener func(delta []models.ResourceLine)

// Tracker applies add and remove operations and reclassifies every row against
// the immediately preceding snapshot after each change.
type Tracker struct {
	state    *State
	caps     Capabilities
	listener Listener
}

func NewTracker(state *State, caps Capabilities, listener Listener) *Tracker {
	if caps == nil {
		caps = DefaultCapabilities()
	}
	if state.Deleted == nil {
		state.Deleted = []models.ResourceLine{}
	}
	return &Tracker{state: state, caps: caps, listener: listener}
}

func (t *Tracker) State() *State {
	return t.state
}

func (t *Tracker) Add(kind models.ResourceKind, in AddInput) (models.ResourceLine, error) {
	capability, ok := t.caps.For(kind)
	if !ok {
		return models.ResourceLine{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var v custom_error.ValidationErrors
	if strings.TrimSpace(in.Code) == "" {
		v.Add("code", "code is required")
	}
	if strings.TrimSpace(in.Name) == "" && !in.Custom {
		v.Add("name", "name is required unless entered as custom")
	}
	if in.Quantity <= 0 {
		v.Add("quantity", "quantity must be greater than zero")
	}
	if err := v.Err(); err != nil {
		return models.ResourceLine{}, err
	}

	t.state.Seq++
	line := models.ResourceLine{
		ID:       fmt.Sprintf("%s%d", capability.IDPrefix, t.state.Seq),
		Kind:     kind,
		Code:     strings.TrimSpace(in.Code),
		Name:     strings.TrimSpace(in.Name),
		Quantity: in.Quantity,
		Custom:   in.Custom,
	}
	t.state.Lines = append(t.state.Lines, line)
	t.recompute()

	return line, nil
}

func (t *Tracker) Remove(id string) error {
	for i, line := range t.state.Lines {
		if line.ID != id {
			continue
		}
		capability, _ := t.caps.For(line.Kind)
		if !capability.Deletable {
			return fmt.Errorf("%w: %s", ErrNotDeletable, line.Kind)
		}
		t.state.Lines = append(t.state.Lines[:i:i], t.state.Lines[i+1:]...)
		t.recompute()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrLineNotFound, id)
}

// Replace swaps the visible lines, e.g. when a saved work order comes back
// from the backend, and diffs them like any other change.
func (t *Tracker) Replace(r models.Resources) {
	t.state.Lines = r.Lines()
	t.recompute()
}

// Reset makes the current lines the new baseline and forgets the delta.
func (t *Tracker) Reset(r models.Resources) {
	seq := t.state.Seq
	*t.state = *NewState(r)
	t.state.Seq = seq
}

func (t *Tracker) Lines() []models.ResourceLine {
	return t.state.Lines
}

func (t *Tracker) Resources() models.Resources {
	return models.ResourcesFromLines(t.state.Lines)
}

// Delta is the last emitted classification: every current row as new or
// update plus a delete entry for every row removed during the draft.
func (t *Tracker) Delta() []models.ResourceLine {
	return t.state.Delta
}

func (t *Tracker) HasNewResources() bool {
	return t.state.HasNew
}

func (t *Tracker) Dismiss() {
	t.state.HasNew = false
}

func (t *Tracker) Deletable(kind models.ResourceKind) bool {
	capability, _ := t.caps.For(kind)
	return capability.Deletable
}

// SectionComplete needs at least one resource line and every report item done.
func (t *Tracker) SectionComplete(reportItems []models.ReportItem) bool {
	if len(t.state.Lines) == 0 {
		return false
	}
	for _, item := range reportItems {
		if !item.Completed {
			return false
		}
	}
	return true
}

func (t *Tracker) recompute() bool {
	current := serialize(t.state.Lines)
	if current == t.state.Snapshot {
		return false
	}

	var previous []models.ResourceLine
	_ = json.Unmarshal([]byte(t.state.Snapshot), &previous)

	prevIDs := make(map[string]bool, len(previous))
	for _, line := range previous {
		prevIDs[line.ID] = true
	}
	currentIDs := make(map[string]bool, len(t.state.Lines))

	delta := make([]models.ResourceLine, 0, len(t.state.Lines)+len(t.state.Deleted))
	for _, line := range t.state.Lines {
		currentIDs[line.ID] = true
		if prevIDs[line.ID] {
			line.Status = models.ChangeUpdate
		} else {
			line.Status = models.ChangeNew
			if capability, _ := t.caps.For(line.Kind); capability.InventoryImpacting {
				t.state.HasNew = true
			}
		}
		delta = append(delta, line)
	}

	deleted := t.state.Deleted[:0:0]
	for _, line := range t.state.Deleted {
		if !currentIDs[line.ID] {
			deleted = append(deleted, line)
		}
	}
	known := make(map[string]bool, len(deleted))
	for _, line := range deleted {
		known[line.ID] = true
	}
	for _, line := range previous {
		if !currentIDs[line.ID] && !known[line.ID] {
			line.Status = models.ChangeDelete
			deleted = append(deleted, line)
		}
	}
	t.state.Deleted = deleted

	delta = append(delta, deleted...)
	t.state.Delta = delta
	t.state.Snapshot = current

	if t.listener != nil {
		t.listener(delta)
	}
	return true
}

func serialize(lines []models.ResourceLine) string {
	clean := make([]models.ResourceLine, len(lines))
	for i, line := range lines {
		line.Status = ""
		clean[i] = line
	}
	raw, _ := json.Marshal(clean)
	return string(raw)
}
