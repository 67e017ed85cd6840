package checklist

import (
	"encoding/json"
	"errors"
	"fmt"

	"eam/pkg/models"
)

var (
	ErrNotEditable   = errors.New("checklist is read only")
	ErrItemNotFound  = errors.New("checklist item not found")
	ErrMediaNotFound = errors.New("media not found")
	ErrInvalidStatus = errors.New("invalid checklist status")
)

// NotEditableError carries the reason a checklist rejected an edit.
type NotEditableError struct {
	Reason string
}

func (e *NotEditableError) Error() string {
	if e.Reason == "" {
		return ErrNotEditable.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotEditable, e.Reason)
}

func (e *NotEditableError) Unwrap() error {
	return ErrNotEditable
}

// State is the serializable part of a checklist, kept in the work order draft.
type State struct {
	Items       []models.ChecklistItem `json:"items"`
	Asset       Asset                  `json:"asset"`
	Route       *models.Route          `json:"route,omitempty"`
	Expanded    map[string]bool        `json:"expanded"`
	LastEmitted string                 `json:"lastEmitted"`
}

func NewState(items []models.ChecklistItem, asset Asset, route *models.Route) *State {
	cp := make([]models.ChecklistItem, len(items))
	for i, item := range items {
		if item.Status == "" {
			item.Status = models.CheckUnset
		}
		if item.Media == nil {
			item.Media = []models.Media{}
		}
		cp[i] = item
	}
	return &State{
		Items:    cp,
		Asset:    asset,
		Route:    route,
		Expanded: map[string]bool{},
	}
}

// Notification is what a checklist reports upward after a change.
type Notification struct {
	Completion Completion             `json:"completion"`
	Items      []models.ChecklistItem `json:"items"`
}

type Listener func(Notification)

// Reconciler applies user edits to a checklist State and notifies its
// listener once per logical change.
type Reconciler struct {
	state    *State
	editable bool
	reason   string
	listener Listener
}

type Option func(*Reconciler)

// ReadOnly rejects every edit with reason.
func ReadOnly(reason string) Option {
	return func(r *Reconciler) {
		r.editable = false
		r.reason = reason
	}
}

func WithListener(l Listener) Option {
	return func(r *Reconciler) {
		r.listener = l
	}
}

// NewReconciler attaches to state and emits the initial notification if the
// items differ from what was last emitted for this state.
func NewReconciler(state *State, opts ...Option) *Reconciler {
	if state.Expanded == nil {
		state.Expanded = map[string]bool{}
	}
	r := &Reconciler{state: state, editable: true}
	for _, opt := range opts {
		opt(r)
	}
	r.syncExpansion()
	r.emit()
	return r
}

func (r *Reconciler) State() *State {
	return r.state
}

func (r *Reconciler) Items() []models.ChecklistItem {
	return r.state.Items
}

func (r *Reconciler) Groups() []Group {
	return BuildGroups(r.state.Items, r.state.Asset, r.state.Route, r.state.Expanded)
}

func (r *Reconciler) Completion() Completion {
	return CompletionOf(r.state.Items)
}

func (r *Reconciler) IsEditable() (bool, string) {
	return r.editable, r.reason
}

// AssetSeq is the attachment name sequence of the asset an item belongs to.
func (r *Reconciler) AssetSeq(assetNum string) string {
	return AssetSeqFor(r.state.Items, r.state.Route, assetNum)
}

// SetStatus selects status on an item; selecting the active status clears it.
func (r *Reconciler) SetStatus(compositeID string, status models.CheckStatus) (models.CheckStatus, error) {
	if status == models.CheckUnset || !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	item, err := r.editableItem(compositeID)
	if err != nil {
		return "", err
	}

	if item.Status == status {
		item.Status = models.CheckUnset
	} else {
		item.Status = status
	}
	r.emit()

	return item.Status, nil
}

func (r *Reconciler) SetNote(compositeID, note string) error {
	item, err := r.editableItem(compositeID)
	if err != nil {
		return err
	}
	item.Note = note
	r.emit()
	return nil
}

func (r *Reconciler) AddMedia(compositeID string, media models.Media) error {
	item, err := r.editableItem(compositeID)
	if err != nil {
		return err
	}
	if hasMedia(*item, media) {
		return nil
	}
	item.Media = append(item.Media, media)
	r.emit()
	return nil
}

// RemoveMedia detaches a media item and returns it.
func (r *Reconciler) RemoveMedia(compositeID, mediaID string) (models.Media, error) {
	item, err := r.editableItem(compositeID)
	if err != nil {
		return models.Media{}, err
	}
	for i, m := range item.Media {
		if m.ID == mediaID {
			item.Media = append(item.Media[:i:i], item.Media[i+1:]...)
			r.emit()
			return m, nil
		}
	}
	return models.Media{}, ErrMediaNotFound
}

// FindMedia looks a media item up without changing anything.
func (r *Reconciler) FindMedia(compositeID, mediaID string) (models.ChecklistItem, models.Media, error) {
	item := r.find(compositeID)
	if item == nil {
		return models.ChecklistItem{}, models.Media{}, ErrItemNotFound
	}
	for _, m := range item.Media {
		if m.ID == mediaID {
			return *item, m, nil
		}
	}
	return *item, models.Media{}, ErrMediaNotFound
}

func (r *Reconciler) Item(compositeID string) (models.ChecklistItem, error) {
	item := r.find(compositeID)
	if item == nil {
		return models.ChecklistItem{}, ErrItemNotFound
	}
	return *item, nil
}

// ToggleGroup flips the expansion of a group. Allowed on read only checklists.
func (r *Reconciler) ToggleGroup(assetNum string) bool {
	for _, g := range r.Groups() {
		if g.AssetNum == assetNum {
			r.state.Expanded[assetNum] = !g.IsExpanded
			r.syncExpansion()
			return r.state.Expanded[assetNum]
		}
	}
	return false
}

// Replace swaps in a fresh item set from the server, keeping expansion flags.
func (r *Reconciler) Replace(items []models.ChecklistItem) {
	fresh := NewState(items, r.state.Asset, r.state.Route)
	r.state.Items = fresh.Items
	r.syncExpansion()
	r.emit()
}

// ApplyAttachments places stored attachments on their checklist items and
// returns how many were added. Media already on an item take the URL of the
// listing, which may carry a newer signature.
func (r *Reconciler) ApplyAttachments(atts []models.Attachment) int {
	added, refreshed := 0, 0
	for _, att := range atts {
		media, ok := mediaFor(att)
		if !ok {
			continue
		}
		if r.refreshMedia(media) {
			refreshed++
			continue
		}
		idx, ok := MatchAttachment(r.state.Items, att)
		if !ok || hasMedia(r.state.Items[idx], media) {
			continue
		}
		r.state.Items[idx].Media = append(r.state.Items[idx].Media, media)
		added++
	}
	if added > 0 || refreshed > 0 {
		r.emit()
	}
	return added
}

// refreshMedia updates the URL of the media with m's id wherever it sits.
// It reports whether that id was found.
func (r *Reconciler) refreshMedia(m models.Media) bool {
	found := false
	for i := range r.state.Items {
		for j := range r.state.Items[i].Media {
			existing := &r.state.Items[i].Media[j]
			if existing.ID != m.ID {
				continue
			}
			found = true
			if m.URL != "" {
				existing.URL = m.URL
			}
		}
	}
	return found
}

func (r *Reconciler) editableItem(compositeID string) (*models.ChecklistItem, error) {
	if !r.editable {
		return nil, &NotEditableError{Reason: r.reason}
	}
	item := r.find(compositeID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, compositeID)
	}
	return item, nil
}

func (r *Reconciler) find(compositeID string) *models.ChecklistItem {
	for i := range r.state.Items {
		if r.state.Items[i].CompositeID() == compositeID {
			return &r.state.Items[i]
		}
	}
	return nil
}

// syncExpansion records the effective expansion of every current group so a
// later regrouping keeps it.
func (r *Reconciler) syncExpansion() {
	for _, g := range BuildGroups(r.state.Items, r.state.Asset, r.state.Route, r.state.Expanded) {
		r.state.Expanded[g.AssetNum] = g.IsExpanded
	}
}

func (r *Reconciler) emit() bool {
	raw, err := json.Marshal(r.state.Items)
	if err != nil {
		return false
	}
	if string(raw) == r.state.LastEmitted {
		return false
	}
	r.state.LastEmitted = string(raw)
	if r.listener != nil {
		r.listener(Notification{Completion: r.Completion(), Items: r.state.Items})
	}
	return true
}
