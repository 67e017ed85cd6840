package workorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"eam/internal/attachments"
	"eam/internal/checklist"
	"eam/internal/dirty"
	"eam/internal/metrics"
	"eam/internal/resources"
	"eam/internal/session"
	custom_error "eam/pkg/errors"
	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoChanges         = errors.New("draft has no unsaved changes")
	ErrDeletePending     = errors.New("media deletion already in progress")
	ErrMediaDeleteFailed = errors.New("media could not be deleted")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrInvalidPreset     = errors.New("unknown time preset")
)

// NotEditableError rejects draft edits on work orders whose status is locked.
type NotEditableError struct {
	Reason string
}

func (e *NotEditableError) Error() string {
	return e.Reason
}

func (e *NotEditableError) Unwrap() error {
	return ErrNotEditable
}

func editableReason(status metadata.Status) string {
	if status.IsEditable() {
		return ""
	}
	return fmt.Sprintf("work order is %s and can no longer be edited", status)
}

// Draft is the working copy of an opened work order. It is cached in the
// client session after every change and written to the backend on save.
type Draft struct {
	WorkOrder      models.WorkOrder  `json:"workOrder"`
	Staff          models.Staff      `json:"staff"`
	TimeWindow     models.TimeWindow `json:"timeWindow"`
	Fields         map[string]string `json:"fields"`
	Checklist      *checklist.State  `json:"checklist"`
	Resources      *resources.State  `json:"resources"`
	Dirty          *dirty.State      `json:"dirty"`
	Serials        map[string]int    `json:"serials"`
	PendingDeletes []string          `json:"pendingDeletes"`
	Revision       int               `json:"revision"`
}

func newDraft(wo models.WorkOrder) *Draft {
	header := wo
	header.CheckItems = nil
	header.Resources = models.Resources{}

	return &Draft{
		WorkOrder:      header,
		Staff:          wo.Staff,
		TimeWindow:     wo.TimeWindow,
		Fields:         copyFields(wo.Fields),
		Checklist:      checklist.NewState(wo.CheckItems, checklist.Asset{Num: wo.AssetNum, Name: wo.AssetName}, wo.Route),
		Resources:      resources.NewState(wo.Resources),
		Serials:        map[string]int{},
		PendingDeletes: []string{},
	}
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func serialKey(assetSeq, itemID string) string {
	return assetSeq + "|" + itemID
}

// View is what every draft endpoint answers with.
type View struct {
	WorkOrder         models.WorkOrder             `json:"workOrder"`
	Groups            []checklist.Group            `json:"groups"`
	Completion        checklist.Completion         `json:"completion"`
	ResourceDelta     []models.ResourceLine        `json:"resourceDelta"`
	HasNewResources   bool                         `json:"hasNewResources"`
	Deletable         map[models.ResourceKind]bool `json:"deletable"`
	ResourcesComplete bool                         `json:"resourcesComplete"`
	IsDirty           bool                         `json:"isDirty"`
	CanSave           bool                         `json:"canSave"`
	Saving            bool                         `json:"saving"`
	Editable          bool                         `json:"editable"`
	EditableReason    string                       `json:"editableReason,omitempty"`
	PendingDeletes    []string                     `json:"pendingMediaDeletes"`
	NextAction        *metadata.Transition         `json:"nextAction,omitempty"`
	Revision          int                          `json:"revision"`
}

// editor binds the draft state to the components that operate on it.
type editor struct {
	draft     *Draft
	checklist *checklist.Reconciler
	resources *resources.Tracker
	gate      *dirty.Gate
}

func (e *editor) snapshot() dirty.Snapshot {
	return dirty.Snapshot{
		Staff:      e.draft.Staff,
		TimeWindow: e.draft.TimeWindow,
		Fields:     e.draft.Fields,
		Checklist:  e.checklist.Items(),
		Resources:  e.resources.Lines(),
	}
}

// current merges the working values into the work order header.
func (e *editor) current() models.WorkOrder {
	wo := e.draft.WorkOrder
	wo.Staff = e.draft.Staff
	wo.TimeWindow = e.draft.TimeWindow
	wo.Fields = copyFields(e.draft.Fields)
	wo.CheckItems = e.checklist.Items()
	wo.Resources = e.resources.Resources()
	return wo
}

func (e *editor) requireEditable() error {
	if reason := editableReason(e.draft.WorkOrder.Status); reason != "" {
		return &NotEditableError{Reason: reason}
	}
	return nil
}

func (e *editor) update() models.WorkOrderUpdate {
	return models.WorkOrderUpdate{
		Staff:      e.draft.Staff,
		TimeWindow: e.draft.TimeWindow,
		Fields:     copyFields(e.draft.Fields),
		CheckItems: withoutLocalMedia(e.checklist.Items()),
		Resources:  e.resources.Resources(),
		Delta:      e.resources.Delta(),
	}
}

// withoutLocalMedia copies items without the previews of failed uploads,
// which exist only in the session draft.
func withoutLocalMedia(items []models.ChecklistItem) []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(items))
	for i, item := range items {
		if len(item.Media) == 0 {
			out[i] = item
			continue
		}
		media := make([]models.Media, 0, len(item.Media))
		for _, m := range item.Media {
			if !m.IsLocal() {
				media = append(media, m)
			}
		}
		item.Media = media
		out[i] = item
	}
	return out
}

// localMedia collects the local previews of items by composite id.
func localMedia(items []models.ChecklistItem) map[string][]models.Media {
	out := make(map[string][]models.Media)
	for _, item := range items {
		for _, m := range item.Media {
			if m.IsLocal() {
				out[item.CompositeID()] = append(out[item.CompositeID()], m)
			}
		}
	}
	return out
}

// withLocalMedia copies items and puts the local previews back on them.
func withLocalMedia(items []models.ChecklistItem, local map[string][]models.Media) []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(items))
	for i, item := range items {
		if extra := local[item.CompositeID()]; len(extra) > 0 {
			media := make([]models.Media, 0, len(item.Media)+len(extra))
			media = append(media, item.Media...)
			item.Media = append(media, extra...)
		}
		out[i] = item
	}
	return out
}

// replaceFrom takes the working state from a work order returned by the backend.
func (e *editor) replaceFrom(wo models.WorkOrder) {
	header := wo
	header.CheckItems = nil
	header.Resources = models.Resources{}
	e.draft.WorkOrder = header
	e.draft.Staff = wo.Staff
	e.draft.TimeWindow = wo.TimeWindow
	e.draft.Fields = copyFields(wo.Fields)
	e.checklist.Replace(wo.CheckItems)
	e.resources.Reset(wo.Resources)
}

type DraftConfig struct {
	Capabilities resources.Capabilities
	UTCOffset    time.Duration
	StaleAfter   time.Duration
}

// DraftService runs draft operations. Operations on the same session and
// work order are serialized; backend calls run outside that lock.
type DraftService struct {
	service *Service
	backend attachments.Backend
	cfg     DraftConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	locks   *keyedMutex
	now     func() time.Time
}

func NewDraftService(service *Service, backend attachments.Backend, cfg DraftConfig, m *metrics.Metrics, logger *zap.Logger) *DraftService {
	if cfg.Capabilities == nil {
		cfg.Capabilities = resources.DefaultCapabilities()
	}
	return &DraftService{
		service: service,
		backend: backend,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

func (s *DraftService) editor(d *Draft) *editor {
	opts := []checklist.Option{
		checklist.WithListener(func(checklist.Notification) { d.Revision++ }),
	}
	if reason := editableReason(d.WorkOrder.Status); reason != "" {
		opts = append(opts, checklist.ReadOnly(reason))
	}
	if d.Serials == nil {
		d.Serials = map[string]int{}
	}
	if d.PendingDeletes == nil {
		d.PendingDeletes = []string{}
	}
	if d.Fields == nil {
		d.Fields = map[string]string{}
	}
	return &editor{
		draft:     d,
		checklist: checklist.NewReconciler(d.Checklist, opts...),
		resources: resources.NewTracker(d.Resources, s.cfg.Capabilities, nil),
		gate:      dirty.NewGate(d.Dirty, s.cfg.StaleAfter),
	}
}

func (s *DraftService) view(e *editor) View {
	snap := e.snapshot()
	reason := editableReason(e.draft.WorkOrder.Status)

	deletable := make(map[models.ResourceKind]bool, 3)
	for _, kind := range []models.ResourceKind{models.KindLabor, models.KindMaterial, models.KindTool} {
		deletable[kind] = e.resources.Deletable(kind)
	}

	v := View{
		WorkOrder:         e.current(),
		Groups:            e.checklist.Groups(),
		Completion:        e.checklist.Completion(),
		ResourceDelta:     e.resources.Delta(),
		HasNewResources:   e.resources.HasNewResources(),
		Deletable:         deletable,
		ResourcesComplete: e.resources.SectionComplete(e.draft.WorkOrder.ReportItems),
		IsDirty:           e.gate.IsDirty(snap),
		CanSave:           e.gate.CanSave(snap, e.draft.WorkOrder.Status),
		Saving:            e.gate.InFlight(),
		Editable:          reason == "",
		EditableReason:    reason,
		PendingDeletes:    append([]string{}, e.draft.PendingDeletes...),
		Revision:          e.draft.Revision,
	}
	if tr, ok := metadata.NextTransition(e.draft.WorkOrder.Type, e.draft.WorkOrder.Status); ok {
		v.NextAction = &tr
	}
	return v
}

func draftKey(client *session.Client, id string) string {
	return client.ID() + "|" + id
}

// fresh builds a draft from the backend copy of a work order with its
// stored attachments placed on the checklist.
func (s *DraftService) fresh(ctx context.Context, id string) (*Draft, error) {
	wo, err := s.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := newDraft(wo)
	d.Dirty = &dirty.State{}
	e := s.editor(d)

	if s.backend != nil {
		atts, err := s.backend.List(ctx, id)
		if err != nil {
			s.logger.Warn("unable to load attachments", zap.String("wonum", id), zap.Error(err))
		} else {
			e.checklist.ApplyAttachments(atts)
			for _, att := range atts {
				name, ok := metadata.ParseAttachmentFileName(att.FileName)
				if !ok {
					continue
				}
				key := serialKey(name.AssetSeq, name.ItemID)
				if name.Serial > d.Serials[key] {
					d.Serials[key] = name.Serial
				}
			}
		}
	}

	d.Dirty = dirty.NewState(e.snapshot())
	return d, nil
}

func (s *DraftService) load(ctx context.Context, client *session.Client, id string) (*Draft, error) {
	var d Draft
	ok, err := client.LoadDraft(ctx, id, &d)
	if err != nil {
		s.logger.Warn("discarding unreadable cached draft", zap.String("wonum", id), zap.Error(err))
	}
	if ok && err == nil && d.Checklist != nil && d.Resources != nil && d.Dirty != nil {
		return &d, nil
	}
	return s.fresh(ctx, id)
}

// withDraft loads the draft, applies fn and caches the result. Nothing is
// cached when fn fails.
func (s *DraftService) withDraft(ctx context.Context, client *session.Client, id string, fn func(e *editor) error) (View, error) {
	unlock := s.locks.Lock(draftKey(client, id))
	defer unlock()

	d, err := s.load(ctx, client, id)
	if err != nil {
		return View{}, err
	}
	e := s.editor(d)
	if err := fn(e); err != nil {
		return View{}, err
	}
	if err := client.SaveDraft(ctx, id, d); err != nil {
		return View{}, fmt.Errorf("cache draft: %w", err)
	}
	return s.view(e), nil
}

// Open returns the cached draft or starts a new one. refresh drops the cache first.
func (s *DraftService) Open(ctx context.Context, client *session.Client, id string, refresh bool) (View, error) {
	if refresh {
		if err := s.Close(ctx, client, id); err != nil {
			return View{}, err
		}
	}
	return s.withDraft(ctx, client, id, func(*editor) error { return nil })
}

func (s *DraftService) Close(ctx context.Context, client *session.Client, id string) error {
	unlock := s.locks.Lock(draftKey(client, id))
	defer unlock()
	return client.DeleteDraft(ctx, id)
}

func (s *DraftService) SetCheckStatus(ctx context.Context, client *session.Client, id, itemKey string, status models.CheckStatus) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		_, err := e.checklist.SetStatus(itemKey, status)
		return err
	})
}

func (s *DraftService) SetCheckNote(ctx context.Context, client *session.Client, id, itemKey, note string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		return e.checklist.SetNote(itemKey, note)
	})
}

func (s *DraftService) ToggleGroup(ctx context.Context, client *session.Client, id, assetNum string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		e.checklist.ToggleGroup(assetNum)
		return nil
	})
}

func (s *DraftService) AddResource(ctx context.Context, client *session.Client, id string, kind models.ResourceKind, in resources.AddInput) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if err := e.requireEditable(); err != nil {
			return err
		}
		_, err := e.resources.Add(kind, in)
		return err
	})
}

func (s *DraftService) RemoveResource(ctx context.Context, client *session.Client, id, lineID string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if err := e.requireEditable(); err != nil {
			return err
		}
		return e.resources.Remove(lineID)
	})
}

// DismissResourceWarning clears the inventory warning without touching the lines.
func (s *DraftService) DismissResourceWarning(ctx context.Context, client *session.Client, id string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		e.resources.Dismiss()
		return nil
	})
}

func (s *DraftService) SetStaff(ctx context.Context, client *session.Client, id string, staff models.Staff) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if err := e.requireEditable(); err != nil {
			return err
		}
		technicians := make([]string, 0, len(staff.Technicians))
		for _, t := range staff.Technicians {
			if t = strings.TrimSpace(t); t != "" {
				technicians = append(technicians, t)
			}
		}
		e.draft.Staff = models.Staff{
			Owner:       strings.TrimSpace(staff.Owner),
			Lead:        strings.TrimSpace(staff.Lead),
			Supervisor:  strings.TrimSpace(staff.Supervisor),
			Technicians: technicians,
		}
		return nil
	})
}

func validateTimeWindow(tw models.TimeWindow) error {
	var v custom_error.ValidationErrors
	if tw.Start != nil && tw.End != nil && tw.End.Before(*tw.Start) {
		v.Add("timeWindow", "end date must not be before start date")
	}
	return v.Err()
}

func (s *DraftService) SetTimeWindow(ctx context.Context, client *session.Client, id string, tw models.TimeWindow) (View, error) {
	if err := validateTimeWindow(tw); err != nil {
		return View{}, err
	}
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if err := e.requireEditable(); err != nil {
			return err
		}
		e.draft.TimeWindow = tw
		return nil
	})
}

// Time presets for the quick set buttons.
const (
	PresetStartNow = "start-now"
	PresetEndNow   = "end-now"
	PresetWorkday  = "workday"
)

// QuickTimeWindow applies preset to tw in the site time zone given by offset.
func QuickTimeWindow(tw models.TimeWindow, preset string, now time.Time, offset time.Duration) (models.TimeWindow, error) {
	zone := time.FixedZone(fmt.Sprintf("UTC%+.1f", offset.Hours()), int(offset.Seconds()))
	local := now.In(zone).Truncate(time.Minute)

	switch preset {
	case PresetStartNow:
		tw.Start = &local
	case PresetEndNow:
		tw.End = &local
	case PresetWorkday:
		start := time.Date(local.Year(), local.Month(), local.Day(), 8, 0, 0, 0, zone)
		end := time.Date(local.Year(), local.Month(), local.Day(), 17, 0, 0, 0, zone)
		tw.Start = &start
		tw.End = &end
	default:
		return tw, fmt.Errorf("%w: %s", ErrInvalidPreset, preset)
	}
	return tw, validateTimeWindow(tw)
}

func (s *DraftService) QuickSetTime(ctx context.Context, client *session.Client, id, preset string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if err := e.requireEditable(); err != nil {
			return err
		}
		tw, err := QuickTimeWindow(e.draft.TimeWindow, preset, s.now(), s.cfg.UTCOffset)
		if err != nil {
			return err
		}
		e.draft.TimeWindow = tw
		return nil
	})
}

// SetFields merges fields into the editable text fields. Empty values clear a field.
func (s *DraftService) SetFields(ctx context.Context, client *session.Client, id string, fields map[string]string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if err := e.requireEditable(); err != nil {
			return err
		}
		for k, v := range fields {
			if v == "" {
				delete(e.draft.Fields, k)
			} else {
				e.draft.Fields[k] = v
			}
		}
		return nil
	})
}

type MediaUpload struct {
	FileName    string `json:"fileName" binding:"required"`
	FileType    string `json:"fileType"`
	FileContent string `json:"fileContent" binding:"required"`
	Description string `json:"description"`
}

type UploadResult struct {
	Uploaded bool         `json:"uploaded"`
	FileName string       `json:"fileName"`
	Media    models.Media `json:"media"`
	Error    string       `json:"error,omitempty"`
}

// UploadMedia names the file after its checklist item, stores it and
// attaches it. The serial is consumed before the upload so a failed upload
// never hands its name to a later file. When the backend fails the file is
// kept as a local preview.
func (s *DraftService) UploadMedia(ctx context.Context, client *session.Client, id, itemKey string, in MediaUpload) (View, UploadResult, error) {
	var req models.UploadRequest
	var kind metadata.MediaKind

	_, err := s.withDraft(ctx, client, id, func(e *editor) error {
		if editable, reason := e.checklist.IsEditable(); !editable {
			return &checklist.NotEditableError{Reason: reason}
		}
		item, err := e.checklist.Item(itemKey)
		if err != nil {
			return err
		}

		ext := metadata.FileExtension(in.FileName)
		k, ok := metadata.MediaKindForExtension(ext)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedMedia, in.FileName)
		}
		kind = k

		seq := e.checklist.AssetSeq(item.AssetNum)
		key := serialKey(seq, item.ID)
		e.draft.Serials[key]++
		serial := e.draft.Serials[key]

		req = models.UploadRequest{
			FileName:    metadata.GenerateAttachmentFileName(seq, item.ID, serial, ext),
			FileType:    in.FileType,
			FileContent: in.FileContent,
			Description: in.Description,
			WorkOrderID: id,
			CheckItemID: item.ID,
			AssetSeq:    seq,
			PhotoSeq:    fmt.Sprintf("%d", serial),
			AssetNum:    item.AssetNum,
		}
		return nil
	})
	if err != nil {
		return View{}, UploadResult{}, err
	}

	result := UploadResult{FileName: req.FileName}
	var media models.Media

	var att models.Attachment
	uploadErr := errors.New("no attachment backend configured")
	if s.backend != nil {
		att, uploadErr = s.backend.Upload(ctx, req)
	}
	if errors.Is(uploadErr, attachments.ErrInvalidUpload) {
		s.metrics.AttachmentUpload("rejected")
		return View{}, UploadResult{}, uploadErr
	}

	if uploadErr == nil {
		s.metrics.AttachmentUpload("ok")
		result.Uploaded = true
		media = models.Media{
			ID:       att.ID,
			Type:     string(kind),
			URL:      att.URL,
			FileName: req.FileName,
		}
	} else {
		s.metrics.AttachmentUpload("failed")
		s.logger.Warn("attachment upload failed, keeping local preview",
			zap.String("wonum", id),
			zap.String("file", req.FileName),
			zap.Error(uploadErr))
		result.Error = uploadErr.Error()
		media = models.Media{
			ID:         models.LocalMediaPrefix + uuid.NewString(),
			Type:       string(kind),
			FileName:   req.FileName,
			PreviewURL: previewURL(in.FileType, in.FileContent),
		}
	}
	result.Media = media

	view, err := s.withDraft(ctx, client, id, func(e *editor) error {
		return e.checklist.AddMedia(itemKey, media)
	})
	if err != nil {
		return View{}, UploadResult{}, err
	}
	return view, result, nil
}

func previewURL(fileType, content string) string {
	if strings.HasPrefix(content, "data:") {
		return content
	}
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	return "data:" + fileType + ";base64," + content
}

// DeleteMedia removes local previews at once. Stored media stay on the item
// until the backend confirms the deletion.
func (s *DraftService) DeleteMedia(ctx context.Context, client *session.Client, id, itemKey, mediaID string) (View, error) {
	local := false
	view, err := s.withDraft(ctx, client, id, func(e *editor) error {
		if editable, reason := e.checklist.IsEditable(); !editable {
			return &checklist.NotEditableError{Reason: reason}
		}
		_, media, err := e.checklist.FindMedia(itemKey, mediaID)
		if err != nil {
			return err
		}
		if media.IsLocal() {
			local = true
			_, err := e.checklist.RemoveMedia(itemKey, mediaID)
			return err
		}
		for _, pending := range e.draft.PendingDeletes {
			if pending == mediaID {
				return fmt.Errorf("%w: %s", ErrDeletePending, mediaID)
			}
		}
		e.draft.PendingDeletes = append(e.draft.PendingDeletes, mediaID)
		return nil
	})
	if err != nil || local {
		return view, err
	}

	deleteErr := errors.New("no attachment backend configured")
	if s.backend != nil {
		deleteErr = s.backend.Delete(ctx, id, mediaID)
		if errors.Is(deleteErr, attachments.ErrAttachmentNotFound) {
			deleteErr = nil
		}
	}

	view, err = s.withDraft(ctx, client, id, func(e *editor) error {
		pending := e.draft.PendingDeletes[:0:0]
		for _, p := range e.draft.PendingDeletes {
			if p != mediaID {
				pending = append(pending, p)
			}
		}
		e.draft.PendingDeletes = pending

		if deleteErr != nil {
			return nil
		}
		if _, err := e.checklist.RemoveMedia(itemKey, mediaID); err != nil && !errors.Is(err, checklist.ErrMediaNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if deleteErr != nil {
		s.logger.Warn("attachment delete failed", zap.String("wonum", id), zap.String("media", mediaID), zap.Error(deleteErr))
		return view, fmt.Errorf("%w: %v", ErrMediaDeleteFailed, deleteErr)
	}
	return view, nil
}

// Save writes the draft to the backend and makes the response the new
// baseline. Edits made while the save was running stay in the draft.
func (s *DraftService) Save(ctx context.Context, client *session.Client, id string) (View, error) {
	var update models.WorkOrderUpdate
	var sent dirty.Snapshot

	_, err := s.withDraft(ctx, client, id, func(e *editor) error {
		snap := e.snapshot()
		if !e.gate.IsDirty(snap) {
			return ErrNoChanges
		}
		if err := e.gate.BeginSave(e.draft.WorkOrder.Status); err != nil {
			return err
		}
		update = e.update()
		sent = snap
		return nil
	})
	if err != nil {
		s.metrics.DraftSave("rejected")
		return View{}, err
	}

	saved, saveErr := s.service.Save(ctx, id, update)

	view, err := s.withDraft(ctx, client, id, func(e *editor) error {
		if saveErr != nil {
			e.gate.AbortSave()
			return nil
		}
		// Local previews were not sent; they stay on the draft and in its baseline.
		checkItems := withLocalMedia(saved.CheckItems, localMedia(sent.Checklist))
		if e.snapshot().Equal(sent) {
			working := saved
			working.CheckItems = checkItems
			e.replaceFrom(working)
		} else {
			header := saved
			header.CheckItems = nil
			header.Resources = models.Resources{}
			e.draft.WorkOrder = header
		}
		e.gate.FinishSave(dirty.Snapshot{
			Staff:      saved.Staff,
			TimeWindow: saved.TimeWindow,
			Fields:     saved.Fields,
			Checklist:  checkItems,
			Resources:  saved.Resources.Lines(),
		})
		return nil
	})
	if saveErr != nil {
		s.metrics.DraftSave("failed")
		s.logger.Warn("draft save failed", zap.String("wonum", id), zap.Error(saveErr))
		return View{}, saveErr
	}
	if err != nil {
		return View{}, err
	}

	s.metrics.DraftSave("ok")
	s.logger.Info("draft saved", zap.String("wonum", id), zap.Int("resource_delta", len(update.Delta)))
	return view, nil
}

// Discard restores the working state to the last loaded or saved baseline.
func (s *DraftService) Discard(ctx context.Context, client *session.Client, id string) (View, error) {
	return s.withDraft(ctx, client, id, func(e *editor) error {
		if e.gate.InFlight() {
			return dirty.ErrSaveInFlight
		}
		orig, err := e.gate.Original()
		if err != nil {
			return err
		}
		e.draft.Staff = orig.Staff
		e.draft.TimeWindow = orig.TimeWindow
		e.draft.Fields = copyFields(orig.Fields)
		e.checklist.Replace(orig.Checklist)
		e.resources.Reset(models.ResourcesFromLines(orig.Resources))
		return nil
	})
}

// Submit advances the work order using the draft's values. Completion
// requirements are checked before anything is sent, unsaved edits are saved
// first and the draft is reopened from the submitted work order.
func (s *DraftService) Submit(ctx context.Context, client *session.Client, id string, req models.SubmitRequest) (View, error) {
	var current models.WorkOrder
	var isDirty bool
	if _, err := s.withDraft(ctx, client, id, func(e *editor) error {
		current = e.current()
		isDirty = e.gate.IsDirty(e.snapshot())
		return nil
	}); err != nil {
		return View{}, err
	}

	if string(current.Status) != strings.TrimSpace(req.CurrentStatus) {
		return View{}, fmt.Errorf("%w: expected %s, found %s", ErrStatusConflict, req.CurrentStatus, current.Status)
	}
	tr, ok := metadata.NextTransition(current.Type, current.Status)
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrNoTransition, current.Status)
	}
	if tr.RequiresValidation {
		if err := ValidateCompletion(current); err != nil {
			return View{}, err
		}
	}
	if tr.RequiresComment && strings.TrimSpace(req.Comment) == "" {
		return View{}, ErrCommentRequired
	}

	if isDirty && current.Status.IsEditable() {
		if _, err := s.Save(ctx, client, id); err != nil {
			return View{}, err
		}
	}

	if _, err := s.service.Submit(ctx, id, req); err != nil {
		return View{}, err
	}
	return s.Open(ctx, client, id, true)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
