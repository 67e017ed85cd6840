package health

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	store  *Store
	logger *zap.Logger
}

func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.get)
	router.POST("/health", h.set)
}

func (h *Handler) get(c *gin.Context) {
	raw, err := h.store.Render()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to render health status", "details": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *Handler) set(c *gin.Context) {
	var u Update
	if err := c.ShouldBindJSON(&u); err != nil {
		if errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Request body is required"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	p, err := h.store.Set(u)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": err.Error()})
		return
	}

	h.logger.Info("health status updated",
		zap.String("status", string(p.Status)),
		zap.String("message", p.Message),
		zap.String("eta", p.EstimatedRecoveryTime))
	c.JSON(http.StatusOK, p)
}
