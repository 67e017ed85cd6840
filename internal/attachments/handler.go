package attachments

import (
	"errors"
	"net/http"
	"strings"

	"eam/internal/metrics"
	"eam/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	backend Backend
	store   BlobStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler serves the attachment API. store may be nil when attachments
// live in a store that hands out its own URLs.
func NewHandler(backend Backend, store BlobStore, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{backend: backend, store: store, metrics: m, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	attachments := router.Group("/attachments")
	{
		attachments.GET("", h.list)
		attachments.POST("", h.upload)
		attachments.DELETE("/:wonum/:id", h.delete)
		if h.store != nil {
			attachments.GET("/files/*key", h.serveFile)
		}
	}
}

func (h *Handler) list(c *gin.Context) {
	wonum := c.Query("wonum")
	if wonum == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wonum query parameter is required"})
		return
	}

	atts, err := h.backend.List(c.Request.Context(), wonum)
	if err != nil {
		h.logger.Error("list attachments failed", zap.String("wonum", wonum), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to list attachments", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, atts)
}

func (h *Handler) upload(c *gin.Context) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload payload", "details": err.Error()})
		return
	}

	att, err := h.backend.Upload(c.Request.Context(), req)
	if err != nil {
		h.metrics.AttachmentUpload("failed")
		if errors.Is(err, ErrInvalidUpload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload payload", "details": err.Error()})
			return
		}
		h.logger.Error("upload failed", zap.String("wonum", req.WorkOrderID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upload failed", "details": err.Error()})
		return
	}

	h.metrics.AttachmentUpload("stored")
	c.JSON(http.StatusCreated, att)
}

func (h *Handler) delete(c *gin.Context) {
	err := h.backend.Delete(c.Request.Context(), c.Param("wonum"), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrAttachmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found", "details": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Delete failed", "details": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) serveFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !strings.HasPrefix(key, "attachments/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	info, body, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to read file", "details": err.Error()})
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, body, nil)
}
