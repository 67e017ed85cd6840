package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	store  Store
	logger *zap.Logger
}

func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	s := router.Group("/session")
	{
		s.GET("", h.get)
		s.POST("/login", h.login)
		s.POST("/logout", h.logout)
		s.PUT("/tab", h.setTab)
	}
}

func (h *Handler) Client(c *gin.Context) *Client {
	return NewClient(h.store, ID(c))
}

func (h *Handler) get(c *gin.Context) {
	st, err := h.Client(c).Init(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read session", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// login only records the flag, credentials are not checked.
func (h *Handler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.Client(c).Login(c.Request.Context(), req.Username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to write session", "details": err.Error()})
		return
	}

	h.logger.Info("session login", zap.String("username", req.Username), zap.String("session_id", ID(c)))
	c.JSON(http.StatusOK, gin.H{"loggedIn": true, "username": req.Username})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.Client(c).Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to clear session", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loggedIn": false})
}

func (h *Handler) setTab(c *gin.Context) {
	var req struct {
		Tab string `json:"tab" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.Client(c).SetActiveTab(c.Request.Context(), req.Tab); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to write session", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeTab": req.Tab})
}
