package workorders

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"eam/internal/attachments"
	"eam/internal/checklist"
	"eam/internal/resources"
	"eam/internal/session"
	custom_error "eam/pkg/errors"
	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	pumpWO   = "PM240501"
	pumpA    = "P3PLUMP-P-LOADZNG03A"
	pumpB    = "P3PLUMP-P-LOADZNG03B"
	itemAonA = "CHKA" + pumpA
	itemAonB = "CHKA" + pumpB
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Upload(ctx context.Context, req models.UploadRequest) (models.Attachment, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.Attachment), args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, workOrderID, attachmentID string) error {
	args := m.Called(ctx, workOrderID, attachmentID)
	return args.Error(0)
}

func (m *MockBackend) List(ctx context.Context, workOrderID string) ([]models.Attachment, error) {
	args := m.Called(ctx, workOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

type draftFixture struct {
	repo    *MemoryRepository
	drafts  *DraftService
	client  *session.Client
	backend attachments.Backend
}

func newDraftFixture(t *testing.T, backend attachments.Backend) *draftFixture {
	t.Helper()
	repo := NewMemoryRepository(SeedWorkOrders())
	svc, _ := newTestService(repo)
	if backend == nil {
		backend = attachments.NewBlobBackend(attachments.NewMemoryStore(), "/api/attachments/files", 0, zap.NewNop())
	}
	drafts := NewDraftService(svc, backend, DraftConfig{UTCOffset: 8 * time.Hour}, nil, zap.NewNop())
	return &draftFixture{
		repo:    repo,
		drafts:  drafts,
		client:  session.NewClient(session.NewMemoryStore(), "sid-1"),
		backend: backend,
	}
}

func findItem(t *testing.T, v View, key string) models.ChecklistItem {
	t.Helper()
	for _, item := range v.WorkOrder.CheckItems {
		if item.CompositeID() == key {
			return item
		}
	}
	t.Fatalf("item %s not in view", key)
	return models.ChecklistItem{}
}

func photo() MediaUpload {
	return MediaUpload{
		FileName:    "IMG_0001.JPG",
		FileType:    "image/jpeg",
		FileContent: base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
	}
}

func TestOpenDraft(t *testing.T) {
	f := newDraftFixture(t, nil)

	v, err := f.drafts.Open(context.Background(), f.client, pumpWO, false)
	require.NoError(t, err)

	require.Len(t, v.Groups, 2)
	assert.Equal(t, pumpA, v.Groups[0].AssetNum)
	assert.Len(t, v.Groups[0].CheckItems, 4, "item without asset joins the work order asset")
	assert.Equal(t, pumpB, v.Groups[1].AssetNum)
	assert.True(t, v.Groups[0].IsExpanded)
	assert.False(t, v.Groups[1].IsExpanded)

	assert.Equal(t, checklist.Incomplete, v.Completion)
	assert.False(t, v.IsDirty)
	assert.False(t, v.CanSave)
	assert.True(t, v.Editable)
	require.NotNil(t, v.NextAction)
	assert.Equal(t, metadata.StatusCompleted, v.NextAction.To)
	assert.False(t, v.Deletable[models.KindMaterial])
	assert.True(t, v.Deletable[models.KindLabor])
}

func TestDraftStatusToggleAndDirtyGate(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	v, err := f.drafts.SetCheckStatus(ctx, f.client, pumpWO, itemAonA, models.CheckPass)
	require.NoError(t, err)
	assert.Equal(t, models.CheckPass, findItem(t, v, itemAonA).Status)
	assert.True(t, v.IsDirty)
	assert.True(t, v.CanSave)

	v, err = f.drafts.SetCheckStatus(ctx, f.client, pumpWO, itemAonA, models.CheckPass)
	require.NoError(t, err)
	assert.Equal(t, models.CheckUnset, findItem(t, v, itemAonA).Status)
	assert.False(t, v.IsDirty, "reverting the only change makes the draft clean")
	assert.False(t, v.CanSave)

	_, err = f.drafts.SetCheckStatus(ctx, f.client, pumpWO, "missing", models.CheckPass)
	assert.ErrorIs(t, err, checklist.ErrItemNotFound)
}

func TestDraftIsCachedInSession(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	_, err := f.drafts.SetCheckNote(ctx, f.client, pumpWO, itemAonB, "bearing warm")
	require.NoError(t, err)

	v, err := f.drafts.Open(ctx, f.client, pumpWO, false)
	require.NoError(t, err)
	assert.Equal(t, "bearing warm", findItem(t, v, itemAonB).Note)
	assert.True(t, v.IsDirty)

	other := session.NewClient(session.NewMemoryStore(), "sid-2")
	v, err = f.drafts.Open(ctx, other, pumpWO, false)
	require.NoError(t, err)
	assert.Empty(t, findItem(t, v, itemAonB).Note, "drafts are per session")

	v, err = f.drafts.Open(ctx, f.client, pumpWO, true)
	require.NoError(t, err)
	assert.Empty(t, findItem(t, v, itemAonB).Note)
	assert.False(t, v.IsDirty)
}

func TestDraftResources(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	v, err := f.drafts.AddResource(ctx, f.client, pumpWO, models.KindLabor, resources.AddInput{Code: "TECH-L1", Name: "Technician", Quantity: 3})
	require.NoError(t, err)
	assert.False(t, v.HasNewResources, "labor does not touch inventory")

	v, err = f.drafts.AddResource(ctx, f.client, pumpWO, models.KindTool, resources.AddInput{Code: "MULTI", Name: "Multimeter", Quantity: 1})
	require.NoError(t, err)
	assert.True(t, v.HasNewResources)

	_, err = f.drafts.RemoveResource(ctx, f.client, pumpWO, "MAT-100")
	assert.ErrorIs(t, err, resources.ErrNotDeletable)

	v, err = f.drafts.RemoveResource(ctx, f.client, pumpWO, "labor-1")
	require.NoError(t, err)

	statuses := map[string]models.ChangeStatus{}
	for _, line := range v.ResourceDelta {
		statuses[line.ID] = line.Status
	}
	assert.Equal(t, map[string]models.ChangeStatus{
		"MAT-100": models.ChangeUpdate,
		"tool-2":  models.ChangeUpdate,
		"labor-1": models.ChangeDelete,
	}, statuses)

	v, err = f.drafts.DismissResourceWarning(ctx, f.client, pumpWO)
	require.NoError(t, err)
	assert.False(t, v.HasNewResources)
	assert.Len(t, v.WorkOrder.Resources.Tools, 1)

	_, err = f.drafts.AddResource(ctx, f.client, pumpWO, models.KindLabor, resources.AddInput{})
	var validation *custom_error.ValidationErrors
	assert.True(t, errors.As(err, &validation))
}

func TestDraftUploadNamesFiles(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	_, res, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonB, photo())
	require.NoError(t, err)
	assert.True(t, res.Uploaded)
	assert.Equal(t, "CI_2_CHKA_001.jpg", res.FileName)

	v, res, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonB, photo())
	require.NoError(t, err)
	assert.Equal(t, "CI_2_CHKA_002.jpg", res.FileName)
	assert.Len(t, findItem(t, v, itemAonB).Media, 2)
	assert.Empty(t, findItem(t, v, itemAonA).Media)

	_, res, err = f.drafts.UploadMedia(ctx, f.client, pumpWO, "CHKZ", photo())
	require.NoError(t, err)
	assert.Equal(t, "CI_0_CHKZ_001.jpg", res.FileName)

	_, _, err = f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, MediaUpload{FileName: "notes.txt", FileContent: "eA=="})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestDraftOpenPlacesStoredAttachments(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	_, err := f.backend.Upload(ctx, models.UploadRequest{
		FileName:    metadata.GenerateAttachmentFileName("1", "CHKA", 3, "png"),
		FileType:    "image/png",
		FileContent: base64.StdEncoding.EncodeToString([]byte("png")),
		WorkOrderID: pumpWO,
	})
	require.NoError(t, err)

	v, err := f.drafts.Open(ctx, f.client, pumpWO, false)
	require.NoError(t, err)
	require.Len(t, findItem(t, v, itemAonA).Media, 1)
	assert.Empty(t, findItem(t, v, itemAonB).Media)
	assert.False(t, v.IsDirty, "stored attachments are part of the baseline")

	_, res, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)
	assert.Equal(t, "CI_1_CHKA_004.jpg", res.FileName, "serials continue after stored files")
}

func TestDraftUploadFailureKeepsLocalPreview(t *testing.T) {
	backend := new(MockBackend)
	backend.On("List", mock.Anything, pumpWO).Return([]models.Attachment{}, nil)
	backend.On("Upload", mock.Anything, mock.Anything).Return(models.Attachment{}, errors.New("maximo unavailable")).Once()
	backend.On("Upload", mock.Anything, mock.MatchedBy(func(req models.UploadRequest) bool {
		return req.FileName == "CI_1_CHKA_002.jpg" && req.CheckItemID == "CHKA" && req.AssetNum == pumpA
	})).Return(models.Attachment{ID: "att-2", URL: "https://files/att-2"}, nil).Once()

	f := newDraftFixture(t, backend)
	ctx := context.Background()

	v, res, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)
	assert.False(t, res.Uploaded)
	assert.NotEmpty(t, res.Error)
	assert.True(t, res.Media.IsLocal())
	assert.Equal(t, "data:image/jpeg;base64,"+photo().FileContent, res.Media.PreviewURL)
	require.Len(t, findItem(t, v, itemAonA).Media, 1)

	_, res, err = f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)
	assert.True(t, res.Uploaded)
	assert.Equal(t, "att-2", res.Media.ID)
	backend.AssertExpectations(t)
}

func TestDraftDeleteMedia(t *testing.T) {
	backend := new(MockBackend)
	backend.On("List", mock.Anything, pumpWO).Return([]models.Attachment{}, nil)
	backend.On("Upload", mock.Anything, mock.Anything).Return(models.Attachment{}, errors.New("offline")).Once()
	backend.On("Upload", mock.Anything, mock.Anything).Return(models.Attachment{ID: "att-9", URL: "https://files/att-9"}, nil).Once()
	backend.On("Delete", mock.Anything, pumpWO, "att-9").Return(errors.New("timeout")).Once()
	backend.On("Delete", mock.Anything, pumpWO, "att-9").Return(nil).Once()

	f := newDraftFixture(t, backend)
	ctx := context.Background()

	_, local, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)
	_, stored, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)

	v, err := f.drafts.DeleteMedia(ctx, f.client, pumpWO, itemAonA, local.Media.ID)
	require.NoError(t, err)
	require.Len(t, findItem(t, v, itemAonA).Media, 1)

	v, err = f.drafts.DeleteMedia(ctx, f.client, pumpWO, itemAonA, stored.Media.ID)
	assert.ErrorIs(t, err, ErrMediaDeleteFailed)
	require.Len(t, findItem(t, v, itemAonA).Media, 1, "failed delete keeps the media")
	assert.Empty(t, v.PendingDeletes)

	v, err = f.drafts.DeleteMedia(ctx, f.client, pumpWO, itemAonA, stored.Media.ID)
	require.NoError(t, err)
	assert.Empty(t, findItem(t, v, itemAonA).Media)

	backend.AssertNumberOfCalls(t, "Delete", 2)
}

func TestDraftSaveAndDiscard(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	_, err := f.drafts.Save(ctx, f.client, pumpWO)
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = f.drafts.SetStaff(ctx, f.client, pumpWO, models.Staff{Owner: "wang.l", Lead: " zhao.k ", Supervisor: "sun.y"})
	require.NoError(t, err)
	_, err = f.drafts.AddResource(ctx, f.client, pumpWO, models.KindLabor, resources.AddInput{Code: "TECH-L1", Name: "Technician", Quantity: 2})
	require.NoError(t, err)

	v, err := f.drafts.Save(ctx, f.client, pumpWO)
	require.NoError(t, err)
	assert.False(t, v.IsDirty)
	assert.False(t, v.Saving)
	assert.Equal(t, "zhao.k", v.WorkOrder.Staff.Lead)

	stored, err := f.repo.Get(ctx, pumpWO)
	require.NoError(t, err)
	assert.Equal(t, "sun.y", stored.Staff.Supervisor)
	require.Len(t, stored.Resources.Labor, 1)
	assert.Empty(t, stored.Resources.Labor[0].Status)

	_, err = f.drafts.SetFields(ctx, f.client, pumpWO, map[string]string{"remarks": "seal replaced"})
	require.NoError(t, err)
	_, err = f.drafts.SetCheckStatus(ctx, f.client, pumpWO, itemAonB, models.CheckFail)
	require.NoError(t, err)

	v, err = f.drafts.Discard(ctx, f.client, pumpWO)
	require.NoError(t, err)
	assert.False(t, v.IsDirty)
	assert.Empty(t, v.WorkOrder.Fields["remarks"])
	assert.Equal(t, models.CheckUnset, findItem(t, v, itemAonB).Status)
	assert.Equal(t, "zhao.k", v.WorkOrder.Staff.Lead, "discard returns to the saved baseline")
}

func TestDraftSaveKeepsLocalPreviewOutOfWorkOrder(t *testing.T) {
	backend := new(MockBackend)
	backend.On("List", mock.Anything, pumpWO).Return([]models.Attachment{}, nil)
	backend.On("Upload", mock.Anything, mock.Anything).Return(models.Attachment{}, errors.New("maximo unavailable")).Once()
	backend.On("Upload", mock.Anything, mock.Anything).Return(models.Attachment{ID: "att-2", URL: "https://files/att-2"}, nil).Once()

	f := newDraftFixture(t, backend)
	ctx := context.Background()

	_, local, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)
	require.True(t, local.Media.IsLocal())
	_, _, err = f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)

	v, err := f.drafts.Save(ctx, f.client, pumpWO)
	require.NoError(t, err)
	assert.False(t, v.IsDirty)
	assert.Len(t, findItem(t, v, itemAonA).Media, 2, "the preview stays in the draft")

	stored, err := f.repo.Get(ctx, pumpWO)
	require.NoError(t, err)
	for _, item := range stored.CheckItems {
		for _, m := range item.Media {
			assert.False(t, m.IsLocal(), "local media %s persisted on %s", m.ID, item.CompositeID())
			assert.Empty(t, m.PreviewURL)
		}
	}

	_, err = f.drafts.Save(ctx, f.client, pumpWO)
	assert.ErrorIs(t, err, ErrNoChanges)
}

// signingStore hands out a new signature on every presign.
type signingStore struct {
	*attachments.MemoryStore
	mu sync.Mutex
	n  int
}

func (s *signingStore) PresignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("https://blobs.example/%s?sig=%d", key, s.n), nil
}

func TestDraftRefreshRenewsSignedURLs(t *testing.T) {
	store := &signingStore{MemoryStore: attachments.NewMemoryStore()}
	f := newDraftFixture(t, attachments.NewBlobBackend(store, "/api/attachments/files", time.Minute, zap.NewNop()))
	ctx := context.Background()

	_, res, err := f.drafts.UploadMedia(ctx, f.client, pumpWO, itemAonA, photo())
	require.NoError(t, err)
	require.True(t, res.Uploaded)
	assert.Contains(t, res.Media.URL, "?sig=1")

	_, err = f.drafts.Save(ctx, f.client, pumpWO)
	require.NoError(t, err)

	v, err := f.drafts.Open(ctx, f.client, pumpWO, true)
	require.NoError(t, err)
	media := findItem(t, v, itemAonA).Media
	require.Len(t, media, 1)
	assert.Equal(t, res.Media.ID, media[0].ID)
	assert.Contains(t, media[0].URL, "?sig=2")
	assert.False(t, v.IsDirty)
}

func TestDraftLockedWorkOrder(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	v, err := f.drafts.Open(ctx, f.client, "PM240503", false)
	require.NoError(t, err)
	assert.False(t, v.Editable)
	assert.NotEmpty(t, v.EditableReason)
	assert.Equal(t, checklist.NotApplicable, v.Completion)

	_, err = f.drafts.SetStaff(ctx, f.client, "PM240503", models.Staff{Owner: "x"})
	assert.ErrorIs(t, err, ErrNotEditable)

	_, err = f.drafts.QuickSetTime(ctx, f.client, "PM240503", PresetStartNow)
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestDraftSubmitValidatesWorkingValues(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()

	_, err := f.drafts.Submit(ctx, f.client, pumpWO, models.SubmitRequest{Comment: "done", CurrentStatus: "INPRG"})
	var validation *custom_error.ValidationErrors
	require.True(t, errors.As(err, &validation))
	assert.Len(t, validation.Fields, 4, "owner is already assigned")

	_, err = f.drafts.SetStaff(ctx, f.client, pumpWO, models.Staff{Owner: "wang.l", Lead: "zhao.k", Supervisor: "sun.y"})
	require.NoError(t, err)
	_, err = f.drafts.QuickSetTime(ctx, f.client, pumpWO, PresetWorkday)
	require.NoError(t, err)
	_, err = f.drafts.AddResource(ctx, f.client, pumpWO, models.KindLabor, resources.AddInput{Code: "TECH-L1", Name: "Technician", Quantity: 8})
	require.NoError(t, err)

	_, err = f.drafts.Submit(ctx, f.client, pumpWO, models.SubmitRequest{Comment: "done", CurrentStatus: "APPR"})
	assert.ErrorIs(t, err, ErrStatusConflict)

	v, err := f.drafts.Submit(ctx, f.client, pumpWO, models.SubmitRequest{Comment: "done", CurrentStatus: "INPRG"})
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusCompleted, v.WorkOrder.Status)
	assert.False(t, v.Editable)
	assert.Equal(t, "zhao.k", v.WorkOrder.Staff.Lead, "unsaved edits are saved before submitting")
}

func TestDraftConcurrentEdits(t *testing.T) {
	f := newDraftFixture(t, nil)
	ctx := context.Background()
	keys := []string{itemAonA, itemAonB, "CHKB" + pumpA, "CHKC" + pumpA, "CHKZ"}

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := f.drafts.SetCheckStatus(ctx, f.client, pumpWO, key, models.CheckNA)
			assert.NoError(t, err)
		}(key)
	}
	wg.Wait()

	v, err := f.drafts.Open(ctx, f.client, pumpWO, false)
	require.NoError(t, err)
	for _, key := range keys {
		assert.Equal(t, models.CheckNA, findItem(t, v, key).Status, key)
	}
}

func TestQuickTimeWindow(t *testing.T) {
	now := time.Date(2024, 5, 6, 20, 30, 45, 0, time.UTC)

	tw, err := QuickTimeWindow(models.TimeWindow{}, PresetWorkday, now, 8*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), tw.Start.UTC())
	assert.Equal(t, time.Date(2024, 5, 7, 9, 0, 0, 0, time.UTC), tw.End.UTC())

	tw, err = QuickTimeWindow(models.TimeWindow{}, PresetWorkday, now, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC), tw.Start.UTC())

	tw, err = QuickTimeWindow(models.TimeWindow{}, PresetStartNow, now, 8*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 20, 30, 0, 0, time.UTC), tw.Start.UTC())
	assert.Nil(t, tw.End)

	late := now.Add(time.Hour)
	_, err = QuickTimeWindow(models.TimeWindow{Start: &late}, PresetEndNow, now, 0)
	var validation *custom_error.ValidationErrors
	assert.True(t, errors.As(err, &validation))

	_, err = QuickTimeWindow(models.TimeWindow{}, "tomorrow", now, 0)
	assert.ErrorIs(t, err, ErrInvalidPreset)
}
