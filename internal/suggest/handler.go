package suggest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"eam/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	debouncer *Debouncer
	logger    *zap.Logger
}

// NewHandler accepts a nil debouncer when no suggestion service is configured.
func NewHandler(debouncer *Debouncer, logger *zap.Logger) *Handler {
	return &Handler{debouncer: debouncer, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/workorders/:id/suggestions", h.suggest)
}

type suggestRequest struct {
	Field string `json:"field" binding:"required"`
	Text  string `json:"text"`
}

func (h *Handler) suggest(c *gin.Context) {
	if h.debouncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Suggestions are not configured"})
		return
	}

	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}

	woID := c.Param("id")
	key := Key(session.ID(c), woID, req.Field)

	res, err := h.debouncer.Do(c.Request.Context(), key, Request{
		WorkOrderID: woID,
		Field:       req.Field,
		Text:        req.Text,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "Superseded", "details": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request cancelled", "details": err.Error()})
	default:
		h.logger.Warn("suggestion failed", zap.String("wonum", woID), zap.String("field", req.Field), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Suggestion service failed", "details": err.Error()})
	}
}
