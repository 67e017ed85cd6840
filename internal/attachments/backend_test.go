package attachments

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func uploadRequest(wonum, itemID, assetNum string, serial int) models.UploadRequest {
	return models.UploadRequest{
		FileName:    metadata.GenerateAttachmentFileName("1", itemID, serial, "JPG"),
		FileType:    "image/jpeg",
		FileContent: base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
		WorkOrderID: wonum,
		CheckItemID: itemID,
		AssetSeq:    "1",
		PhotoSeq:    "001",
		AssetNum:    assetNum,
	}
}

func TestBlobBackendUploadListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	backend := NewBlobBackend(store, "/api/attachments/files", 0, zap.NewNop())

	att, err := backend.Upload(ctx, uploadRequest("WO100", "10", "WTG-01", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, att.ID)
	assert.Equal(t, "WO100", att.WorkOrderID)
	assert.Equal(t, "CI_1_10_001.jpg", att.FileName)
	assert.Equal(t, "10", att.CheckItemID)
	assert.Equal(t, "WTG-01", att.AssetNum)
	assert.True(t, strings.HasPrefix(att.URL, "/api/attachments/files/attachments/WO100/"))

	_, err = backend.Upload(ctx, uploadRequest("WO200", "10", "WTG-01", 1))
	require.NoError(t, err)

	list, err := backend.List(ctx, "WO100")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, att.ID, list[0].ID)

	key := strings.TrimPrefix(att.URL, "/api/attachments/files/")
	_, body, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, backend.Delete(ctx, "WO100", att.ID))
	assert.ErrorIs(t, backend.Delete(ctx, "WO100", att.ID), ErrAttachmentNotFound)

	list, err = backend.List(ctx, "WO100")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBlobBackendRejectsInvalidUploads(t *testing.T) {
	backend := NewBlobBackend(NewMemoryStore(), "/files", 0, zap.NewNop())

	tests := []struct {
		name   string
		mutate func(*models.UploadRequest)
	}{
		{"missing wonum", func(r *models.UploadRequest) { r.WorkOrderID = "" }},
		{"unsupported type", func(r *models.UploadRequest) { r.FileName = "report.pdf" }},
		{"bad base64", func(r *models.UploadRequest) { r.FileContent = "%%%" }},
		{"empty content", func(r *models.UploadRequest) { r.FileContent = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest("WO1", "10", "A", 1)
			tt.mutate(&req)
			_, err := backend.Upload(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidUpload)
		})
	}
}

func TestDecodeContentAcceptsDataURL(t *testing.T) {
	b, err := decodeContent("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")))
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "a/1", strings.NewReader("x"), 1, PutOptions{Metadata: map[string]string{"k": "v"}})
	require.NoError(t, err)
	_, err = store.Put(ctx, "a/1", strings.NewReader("x"), 1, PutOptions{})
	assert.Error(t, err)

	_, _, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	_, err = store.PresignURL(ctx, "a/1", 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	existed, err := store.Delete(ctx, "a/1")
	assert.NoError(t, err)
	assert.True(t, existed)
	existed, _ = store.Delete(ctx, "a/1")
	assert.False(t, existed)
}

func TestUserMetadataNormalizesKeys(t *testing.T) {
	got := userMetadata(map[string]string{"X-Amz-Meta-Wonum": "WO1", "Checkitemid": "10"})
	assert.Equal(t, map[string]string{"wonum": "WO1", "checkitemid": "10"}, got)
}
