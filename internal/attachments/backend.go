package attachments

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidUpload      = errors.New("invalid attachment upload")
)

// Backend stores checklist attachments of work orders.
type Backend interface {
	Upload(ctx context.Context, req models.UploadRequest) (models.Attachment, error)
	Delete(ctx context.Context, workOrderID, attachmentID string) error
	List(ctx context.Context, workOrderID string) ([]models.Attachment, error)
}

const (
	metaWorkOrder   = "wonum"
	metaCheckItem   = "checkitemid"
	metaAssetSeq    = "assetseq"
	metaAssetNum    = "assetnum"
	metaPhotoSeq    = "photoseq"
	metaFileName    = "filename"
	metaDescription = "description"
)

// BlobBackend keeps each attachment as one object tagged with the work order,
// checklist item and asset it was taken for.
type BlobBackend struct {
	store     BlobStore
	publicURL string
	urlExpiry time.Duration
	logger    *zap.Logger
}

// NewBlobBackend serves objects of stores without presigning from publicURL,
// the mount point of the file route.
func NewBlobBackend(store BlobStore, publicURL string, urlExpiry time.Duration, logger *zap.Logger) *BlobBackend {
	if urlExpiry <= 0 {
		urlExpiry = time.Hour
	}
	return &BlobBackend{
		store:     store,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		urlExpiry: urlExpiry,
		logger:    logger,
	}
}

func objectPrefix(workOrderID string) string {
	return "attachments/" + workOrderID + "/"
}

func (b *BlobBackend) Upload(ctx context.Context, req models.UploadRequest) (models.Attachment, error) {
	if strings.TrimSpace(req.WorkOrderID) == "" || strings.TrimSpace(req.FileName) == "" {
		return models.Attachment{}, fmt.Errorf("%w: wonum and fileName are required", ErrInvalidUpload)
	}
	if _, ok := metadata.MediaKindForExtension(metadata.FileExtension(req.FileName)); !ok {
		return models.Attachment{}, fmt.Errorf("%w: unsupported file type %s", ErrInvalidUpload, req.FileName)
	}

	content, err := decodeContent(req.FileContent)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	id := uuid.NewString()
	key := objectPrefix(req.WorkOrderID) + id + "/" + path.Base(req.FileName)
	info, err := b.store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), PutOptions{
		ContentType: req.FileType,
		Metadata: map[string]string{
			metaWorkOrder:   req.WorkOrderID,
			metaCheckItem:   req.CheckItemID,
			metaAssetSeq:    req.AssetSeq,
			metaAssetNum:    req.AssetNum,
			metaPhotoSeq:    req.PhotoSeq,
			metaFileName:    req.FileName,
			metaDescription: req.Description,
		},
	})
	if err != nil {
		return models.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}

	b.logger.Debug("attachment stored",
		zap.String("wonum", req.WorkOrderID),
		zap.String("key", key),
		zap.Int64("size", info.Size))

	return b.toAttachment(ctx, info), nil
}

func (b *BlobBackend) Delete(ctx context.Context, workOrderID, attachmentID string) error {
	objects, err := b.store.List(ctx, objectPrefix(workOrderID)+attachmentID+"/")
	if err != nil {
		return fmt.Errorf("find attachment %s: %w", attachmentID, err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("%w: %s", ErrAttachmentNotFound, attachmentID)
	}
	for _, obj := range objects {
		if _, err := b.store.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete attachment %s: %w", attachmentID, err)
		}
	}
	return nil
}

func (b *BlobBackend) List(ctx context.Context, workOrderID string) ([]models.Attachment, error) {
	objects, err := b.store.List(ctx, objectPrefix(workOrderID))
	if err != nil {
		return nil, fmt.Errorf("list attachments of %s: %w", workOrderID, err)
	}
	out := make([]models.Attachment, 0, len(objects))
	for _, obj := range objects {
		out = append(out, b.toAttachment(ctx, obj))
	}
	return out, nil
}

func (b *BlobBackend) toAttachment(ctx context.Context, info BlobInfo) models.Attachment {
	meta := info.Metadata
	rest := strings.TrimPrefix(info.Key, "attachments/")
	parts := strings.SplitN(rest, "/", 3)

	att := models.Attachment{
		WorkOrderID: meta[metaWorkOrder],
		FileName:    meta[metaFileName],
		FileType:    info.ContentType,
		CheckItemID: meta[metaCheckItem],
		AssetSeq:    meta[metaAssetSeq],
		AssetNum:    meta[metaAssetNum],
		Size:        info.Size,
		CreatedAt:   info.LastModified,
	}
	if len(parts) == 3 {
		att.ID = parts[1]
		if att.WorkOrderID == "" {
			att.WorkOrderID = parts[0]
		}
		if att.FileName == "" {
			att.FileName = parts[2]
		}
	}

	signed, err := b.store.PresignURL(ctx, info.Key, b.urlExpiry)
	if err == nil {
		att.URL = signed
	} else {
		att.URL = b.publicURL + "/" + info.Key
	}
	return att
}

// decodeContent accepts plain base64 or a data URL.
func decodeContent(content string) ([]byte, error) {
	if i := strings.Index(content, ";base64,"); i >= 0 && strings.HasPrefix(content, "data:") {
		content = content[i+len(";base64,"):]
	}
	if content == "" {
		return nil, errors.New("empty file content")
	}
	b, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return b, nil
}
