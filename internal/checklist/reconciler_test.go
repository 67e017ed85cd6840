package checklist

import (
	"errors"
	"testing"

	"eam/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState() *State {
	return NewState([]models.ChecklistItem{
		{ID: "1", Sequence: 1, AssetNum: "A", Title: "Blade surface"},
		{ID: "2", Sequence: 2, AssetNum: "A", Title: "Bolt torque"},
		{ID: "1", Sequence: 3, AssetNum: "B", Title: "Blade surface"},
	}, Asset{Num: "A"}, nil)
}

func TestSetStatusToggles(t *testing.T) {
	for _, status := range []models.CheckStatus{models.CheckPass, models.CheckFail, models.CheckNA} {
		t.Run(string(status), func(t *testing.T) {
			r := NewReconciler(newState())

			got, err := r.SetStatus("1A", status)
			require.NoError(t, err)
			assert.Equal(t, status, got)

			got, err = r.SetStatus("1A", status)
			require.NoError(t, err)
			assert.Equal(t, models.CheckUnset, got)
		})
	}
}

func TestSetStatusSwitches(t *testing.T) {
	r := NewReconciler(newState())

	_, _ = r.SetStatus("2A", models.CheckPass)
	got, err := r.SetStatus("2A", models.CheckFail)

	assert.NoError(t, err)
	assert.Equal(t, models.CheckFail, got)
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	r := NewReconciler(newState())

	_, err := r.SetStatus("1A", models.CheckUnset)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = r.SetStatus("9Z", models.CheckPass)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestReadOnlyRejectsEdits(t *testing.T) {
	state := newState()
	r := NewReconciler(state, ReadOnly("work order is COMP"))

	_, err := r.SetStatus("1A", models.CheckPass)
	assert.ErrorIs(t, err, ErrNotEditable)

	var notEditable *NotEditableError
	require.True(t, errors.As(err, &notEditable))
	assert.Equal(t, "work order is COMP", notEditable.Reason)

	assert.ErrorIs(t, r.SetNote("1A", "x"), ErrNotEditable)
	assert.ErrorIs(t, r.AddMedia("1A", models.Media{ID: "m"}), ErrNotEditable)
	assert.Equal(t, models.CheckUnset, state.Items[0].Status)
	assert.Empty(t, state.Items[0].Note)
}

func TestNotificationsOncePerChange(t *testing.T) {
	var got []Notification
	state := newState()
	r := NewReconciler(state, WithListener(func(n Notification) { got = append(got, n) }))

	require.Len(t, got, 1, "initial mount")
	assert.Equal(t, Incomplete, got[0].Completion)

	_, _ = r.SetStatus("1A", models.CheckPass)
	require.NoError(t, r.SetNote("1A", "ok"))
	require.NoError(t, r.SetNote("1A", "ok"))
	r.ToggleGroup("B")
	assert.Len(t, got, 3)

	_, _ = r.SetStatus("2A", models.CheckNA)
	_, _ = r.SetStatus("1B", models.CheckFail)
	assert.Len(t, got, 5)
	assert.Equal(t, Complete, got[4].Completion)

	// Reattaching to an already emitted state stays quiet.
	NewReconciler(state, WithListener(func(n Notification) { got = append(got, n) }))
	assert.Len(t, got, 5)
}

func TestEmptyChecklistIsNotApplicable(t *testing.T) {
	var got []Notification
	r := NewReconciler(NewState(nil, Asset{}, nil), WithListener(func(n Notification) { got = append(got, n) }))

	assert.Equal(t, NotApplicable, r.Completion())
	assert.Empty(t, r.Groups())
	require.Len(t, got, 1)
	assert.Equal(t, NotApplicable, got[0].Completion)
}

func TestMediaLifecycle(t *testing.T) {
	r := NewReconciler(newState())

	m := models.Media{ID: "local-1", Type: "image", URL: "blob:1"}
	require.NoError(t, r.AddMedia("2A", m))
	require.NoError(t, r.AddMedia("2A", m))

	it, err := r.Item("2A")
	require.NoError(t, err)
	assert.Len(t, it.Media, 1)

	removed, err := r.RemoveMedia("2A", "local-1")
	require.NoError(t, err)
	assert.Equal(t, m, removed)

	_, err = r.RemoveMedia("2A", "local-1")
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestToggleGroupSurvivesReplace(t *testing.T) {
	state := newState()
	r := NewReconciler(state)

	assert.True(t, r.ToggleGroup("B"))
	assert.False(t, r.ToggleGroup("A"))

	r.Replace(append(state.Items, models.ChecklistItem{ID: "5", Sequence: 9, AssetNum: "C"}))

	groups := r.Groups()
	require.Len(t, groups, 3)
	assert.False(t, groups[0].IsExpanded)
	assert.True(t, groups[1].IsExpanded)
	assert.False(t, groups[2].IsExpanded)
}

func TestToggleGroupOnReadOnly(t *testing.T) {
	r := NewReconciler(newState(), ReadOnly("closed"))
	assert.True(t, r.ToggleGroup("B"))
}

func TestApplyAttachmentsRefreshesSignedURL(t *testing.T) {
	var got []Notification
	r := NewReconciler(newState(), WithListener(func(n Notification) { got = append(got, n) }))
	got = nil

	att := models.Attachment{
		ID:          "att-1",
		FileName:    "CI_1_1_001.jpg",
		CheckItemID: "1",
		AssetNum:    "A",
		URL:         "https://blob.local/CI_1_1_001.jpg?sig=1",
	}
	assert.Equal(t, 1, r.ApplyAttachments([]models.Attachment{att}))
	require.Len(t, got, 1)

	att.URL = "https://blob.local/CI_1_1_001.jpg?sig=2"
	assert.Equal(t, 0, r.ApplyAttachments([]models.Attachment{att}))

	item, err := r.Item("1A")
	require.NoError(t, err)
	require.Len(t, item.Media, 1)
	assert.Equal(t, "https://blob.local/CI_1_1_001.jpg?sig=2", item.Media[0].URL)
	assert.Len(t, got, 2)

	assert.Equal(t, 0, r.ApplyAttachments([]models.Attachment{att}))
	assert.Len(t, got, 2)
}
