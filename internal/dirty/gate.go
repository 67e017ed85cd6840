package dirty

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eam/pkg/metadata"
	"eam/pkg/models"
)

var (
	ErrSaveInFlight = errors.New("a save is already in progress")
	ErrNotEditable  = errors.New("work order status does not allow editing")
)

// DefaultStaleAfter bounds how long an unfinished save blocks the next one.
const DefaultStaleAfter = 2 * time.Minute

// Snapshot is everything a save persists.
type Snapshot struct {
	Staff      models.Staff           `json:"staff"`
	TimeWindow models.TimeWindow      `json:"timeWindow"`
	Fields     map[string]string      `json:"fields"`
	Checklist  []models.ChecklistItem `json:"checklist"`
	Resources  []models.ResourceLine  `json:"resources"`
}

// canonical renders s so that value equal snapshots serialize identically.
func (s Snapshot) canonical() string {
	c := Snapshot{
		Staff:     s.Staff,
		Fields:    map[string]string{},
		Checklist: []models.ChecklistItem{},
		Resources: []models.ResourceLine{},
	}
	if len(c.Staff.Technicians) == 0 {
		c.Staff.Technicians = nil
	}
	if s.TimeWindow.Start != nil {
		start := s.TimeWindow.Start.UTC()
		c.TimeWindow.Start = &start
	}
	if s.TimeWindow.End != nil {
		end := s.TimeWindow.End.UTC()
		c.TimeWindow.End = &end
	}
	for k, v := range s.Fields {
		if v != "" {
			c.Fields[k] = v
		}
	}
	for _, item := range s.Checklist {
		if item.Status == "" {
			item.Status = models.CheckUnset
		}
		if len(item.Media) == 0 {
			item.Media = nil
		}
		c.Checklist = append(c.Checklist, item)
	}
	for _, line := range s.Resources {
		line.Status = ""
		c.Resources = append(c.Resources, line)
	}

	raw, _ := json.Marshal(c)
	return string(raw)
}

// Equal compares two snapshots by value.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.canonical() == other.canonical()
}

// State is the serializable part of the gate.
type State struct {
	Original    string     `json:"original"`
	SavingSince *time.Time `json:"savingSince,omitempty"`
}

func NewState(original Snapshot) *State {
	return &State{Original: original.canonical()}
}

// Gate decides whether a draft has unsaved changes and whether it may be saved.
type Gate struct {
	state      *State
	staleAfter time.Duration
	now        func() time.Time
}

func NewGate(state *State, staleAfter time.Duration) *Gate {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Gate{state: state, staleAfter: staleAfter, now: time.Now}
}

func (g *Gate) IsDirty(current Snapshot) bool {
	return current.canonical() != g.state.Original
}

func (g *Gate) InFlight() bool {
	return g.state.SavingSince != nil && g.now().Sub(*g.state.SavingSince) < g.staleAfter
}

// CanSave is false when nothing changed, the status forbids editing, or a
// save is already running.
func (g *Gate) CanSave(current Snapshot, status metadata.Status) bool {
	return g.IsDirty(current) && status.IsEditable() && !g.InFlight()
}

// BeginSave marks a save as running.
func (g *Gate) BeginSave(status metadata.Status) error {
	if !status.IsEditable() {
		return fmt.Errorf("%w: %s", ErrNotEditable, status)
	}
	if g.InFlight() {
		return ErrSaveInFlight
	}
	now := g.now()
	g.state.SavingSince = &now
	return nil
}

// FinishSave takes saved, built from the backend response, as the new baseline.
func (g *Gate) FinishSave(saved Snapshot) {
	g.state.Original = saved.canonical()
	g.state.SavingSince = nil
}

func (g *Gate) AbortSave() {
	g.state.SavingSince = nil
}

// Original decodes the baseline so a discard can restore it.
func (g *Gate) Original() (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(g.state.Original), &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode original snapshot: %w", err)
	}
	if s.Fields == nil {
		s.Fields = map[string]string{}
	}
	return s, nil
}
