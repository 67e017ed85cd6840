package dirty

import (
	"testing"
	"time"

	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseline() Snapshot {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	return Snapshot{
		Staff:      models.Staff{Owner: "chen", Lead: "lin", Supervisor: "wang"},
		TimeWindow: models.TimeWindow{Start: &start, End: &end},
		Fields:     map[string]string{"remark": "gearbox check"},
		Checklist: []models.ChecklistItem{
			{ID: "1", AssetNum: "A", Status: models.CheckPass},
			{ID: "2", AssetNum: "A", Status: models.CheckUnset},
		},
		Resources: []models.ResourceLine{{ID: "L1", Kind: models.KindLabor, Code: "TECH", Quantity: 4}},
	}
}

// clone deep copies the parts the mutations below touch.
func clone(s Snapshot) Snapshot {
	c := s
	c.Fields = map[string]string{}
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	c.Checklist = append([]models.ChecklistItem(nil), s.Checklist...)
	c.Resources = append([]models.ResourceLine(nil), s.Resources...)
	if s.TimeWindow.Start != nil {
		start := *s.TimeWindow.Start
		c.TimeWindow.Start = &start
	}
	return c
}

func TestIsDirty(t *testing.T) {
	o := baseline()
	gate := NewGate(NewState(o), 0)

	mutations := map[string]func(*Snapshot){
		"staff":     func(s *Snapshot) { s.Staff.Lead = "zhao" },
		"time":      func(s *Snapshot) { later := s.TimeWindow.Start.Add(time.Hour); s.TimeWindow.Start = &later },
		"fields":    func(s *Snapshot) { s.Fields["remark"] = "changed" },
		"checklist": func(s *Snapshot) { s.Checklist[1].Status = models.CheckFail },
		"resources": func(s *Snapshot) { s.Resources = append(s.Resources, models.ResourceLine{ID: "labor-1"}) },
	}

	assert.False(t, gate.IsDirty(clone(o)))

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := clone(o)
			mutate(&c)
			assert.True(t, gate.IsDirty(c))
		})
	}

	t.Run("all combined then reverted", func(t *testing.T) {
		c := clone(o)
		for _, mutate := range mutations {
			mutate(&c)
		}
		assert.True(t, gate.IsDirty(c))
		assert.False(t, gate.IsDirty(clone(o)))
	})
}

func TestIsDirtyIgnoresRepresentation(t *testing.T) {
	o := baseline()
	gate := NewGate(NewState(o), 0)

	c := clone(o)
	local := c.TimeWindow.Start.In(time.FixedZone("UTC+8", 8*3600))
	c.TimeWindow.Start = &local
	c.Fields["empty"] = ""
	c.Resources[0].Status = models.ChangeUpdate
	c.Checklist[0].Media = []models.Media{}

	assert.False(t, gate.IsDirty(c))
}

func TestCanSave(t *testing.T) {
	o := baseline()
	gate := NewGate(NewState(o), time.Minute)
	changed := clone(o)
	changed.Staff.Owner = "someone else"

	assert.False(t, gate.CanSave(o, metadata.StatusInProgress), "clean")
	assert.True(t, gate.CanSave(changed, metadata.StatusInProgress))
	assert.False(t, gate.CanSave(changed, metadata.StatusCompleted), "status forbids editing")

	require.NoError(t, gate.BeginSave(metadata.StatusInProgress))
	assert.False(t, gate.CanSave(changed, metadata.StatusInProgress), "in flight")
	assert.ErrorIs(t, gate.BeginSave(metadata.StatusInProgress), ErrSaveInFlight)

	gate.AbortSave()
	assert.True(t, gate.CanSave(changed, metadata.StatusInProgress))

	require.NoError(t, gate.BeginSave(metadata.StatusInProgress))
	gate.FinishSave(changed)
	assert.False(t, gate.IsDirty(changed))
	assert.False(t, gate.InFlight())

	assert.ErrorIs(t, gate.BeginSave(metadata.StatusClosed), ErrNotEditable)
}

func TestStaleSaveExpires(t *testing.T) {
	gate := NewGate(NewState(baseline()), time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }

	require.NoError(t, gate.BeginSave(metadata.StatusApproved))
	assert.True(t, gate.InFlight())

	now = now.Add(2 * time.Minute)
	assert.False(t, gate.InFlight())
}

func TestOriginalRestoresBaseline(t *testing.T) {
	o := baseline()
	gate := NewGate(NewState(o), 0)

	restored, err := gate.Original()
	require.NoError(t, err)
	assert.False(t, gate.IsDirty(restored))
	assert.Equal(t, "chen", restored.Staff.Owner)
	assert.True(t, o.TimeWindow.Start.Equal(*restored.TimeWindow.Start))
}
