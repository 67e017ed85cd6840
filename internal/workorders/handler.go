package workorders

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"eam/internal/attachments"
	"eam/internal/checklist"
	"eam/internal/dirty"
	"eam/internal/resources"
	"eam/internal/session"
	custom_error "eam/pkg/errors"
	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service       *Service
	drafts        *DraftService
	sessionStore  session.Store
	createLimiter gin.HandlerFunc
	logger        *zap.Logger
}

// NewHandler wires the work order API. createLimiter guards CM creation and may be nil.
func NewHandler(service *Service, drafts *DraftService, store session.Store, createLimiter gin.HandlerFunc, logger *zap.Logger) *Handler {
	return &Handler{
		service:       service,
		drafts:        drafts,
		sessionStore:  store,
		createLimiter: createLimiter,
		logger:        logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/workorders", h.list)
	router.GET("/workorders/export", h.export)
	router.GET("/workorders/:id", h.get)
	router.GET("/workorders/:id/history", h.history)
	router.POST("/workorders/:id/submit", h.submit)

	create := []gin.HandlerFunc{h.createCM}
	if h.createLimiter != nil {
		create = append([]gin.HandlerFunc{h.createLimiter}, create...)
	}
	router.POST("/workorders/cm", create...)

	draft := router.Group("/workorders/:id/draft")
	{
		draft.GET("", h.openDraft)
		draft.POST("", h.openDraft)
		draft.DELETE("", h.closeDraft)
		draft.PUT("/checklist/:itemKey/status", h.setCheckStatus)
		draft.PUT("/checklist/:itemKey/note", h.setCheckNote)
		draft.POST("/checklist/:itemKey/media", h.uploadMedia)
		draft.DELETE("/checklist/:itemKey/media/:mediaId", h.deleteMedia)
		draft.POST("/groups/toggle", h.toggleGroup)
		draft.POST("/resources/:kind", h.addResource)
		draft.DELETE("/resources/:lineId", h.removeResource)
		draft.POST("/resources-warning/dismiss", h.dismissWarning)
		draft.PUT("/staff", h.setStaff)
		draft.PUT("/time-window", h.setTimeWindow)
		draft.POST("/time-window/quick", h.quickSetTime)
		draft.PUT("/fields", h.setFields)
		draft.POST("/save", h.save)
		draft.POST("/discard", h.discard)
		draft.POST("/submit", h.submitDraft)
	}
}

func (h *Handler) client(c *gin.Context) *session.Client {
	return session.NewClient(h.sessionStore, session.ID(c))
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validation *custom_error.ValidationErrors
	var notEditable *NotEditableError
	var checklistLocked *checklist.NotEditableError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Validation failed",
			"details": validation.Error(),
			"fields":  validation.Fields,
		})
	case errors.As(err, &notEditable):
		c.JSON(http.StatusForbidden, gin.H{"error": "Work order is read only", "details": notEditable.Reason})
	case errors.As(err, &checklistLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "Work order is read only", "details": checklistLocked.Reason})
	case errors.Is(err, ErrNotEditable), errors.Is(err, dirty.ErrNotEditable):
		c.JSON(http.StatusForbidden, gin.H{"error": "Work order is read only", "details": err.Error()})
	case errors.Is(err, resources.ErrNotDeletable):
		c.JSON(http.StatusForbidden, gin.H{"error": "Resource cannot be removed", "details": err.Error()})
	case errors.Is(err, ErrWorkOrderNotFound),
		errors.Is(err, checklist.ErrItemNotFound),
		errors.Is(err, checklist.ErrMediaNotFound),
		errors.Is(err, resources.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": err.Error()})
	case errors.Is(err, ErrStatusConflict),
		errors.Is(err, ErrNoTransition),
		errors.Is(err, ErrNoChanges),
		errors.Is(err, ErrDeletePending),
		errors.Is(err, dirty.ErrSaveInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "details": err.Error()})
	case errors.Is(err, ErrCommentRequired),
		errors.Is(err, ErrInvalidPreset),
		errors.Is(err, ErrUnsupportedMedia),
		errors.Is(err, checklist.ErrInvalidStatus),
		errors.Is(err, resources.ErrUnknownKind),
		errors.Is(err, attachments.ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
	case errors.Is(err, ErrMediaDeleteFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete media", "details": err.Error()})
	default:
		h.logger.Error("work order request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
	}
}

func (h *Handler) list(c *gin.Context) {
	var t metadata.WorkOrderType
	if raw := c.Query("type"); raw != "" {
		parsed, err := metadata.NewWorkOrderType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type", "details": err.Error()})
			return
		}
		t = parsed
	}

	orders, err := h.service.List(c.Request.Context(), t)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) export(c *gin.Context) {
	var t metadata.WorkOrderType
	if raw := c.Query("type"); raw != "" {
		parsed, err := metadata.NewWorkOrderType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type", "details": err.Error()})
			return
		}
		t = parsed
	}

	orders, err := h.service.List(c.Request.Context(), t)
	if err != nil {
		h.respondError(c, err)
		return
	}

	name := "workorders"
	if t != "" {
		name += "_" + string(t)
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s_%s.xlsx\"", name, time.Now().UTC().Format("20060102")))
	c.Header("Content-Transfer-Encoding", "binary")
	c.Status(http.StatusOK)

	if err := WriteWorkbook(c.Writer, orders); err != nil {
		h.logger.Error("export failed", zap.Error(err))
	}
}

func (h *Handler) get(c *gin.Context) {
	wo, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *Handler) history(c *gin.Context) {
	logs, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) createCM(c *gin.Context) {
	var req models.CreateCMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	wo, err := h.service.CreateCM(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wo)
}

func (h *Handler) submit(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	wo, err := h.service.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *Handler) respondView(c *gin.Context, view View, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) openDraft(c *gin.Context) {
	refresh := c.Query("refresh") == "true"
	view, err := h.drafts.Open(c.Request.Context(), h.client(c), c.Param("id"), refresh)
	h.respondView(c, view, err)
}

func (h *Handler) closeDraft(c *gin.Context) {
	if err := h.drafts.Close(c.Request.Context(), h.client(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setCheckStatus(c *gin.Context) {
	var req struct {
		Status models.CheckStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.SetCheckStatus(c.Request.Context(), h.client(c), c.Param("id"), c.Param("itemKey"), req.Status)
	h.respondView(c, view, err)
}

func (h *Handler) setCheckNote(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.SetCheckNote(c.Request.Context(), h.client(c), c.Param("id"), c.Param("itemKey"), req.Note)
	h.respondView(c, view, err)
}

func (h *Handler) uploadMedia(c *gin.Context) {
	var req MediaUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, result, err := h.drafts.UploadMedia(c.Request.Context(), h.client(c), c.Param("id"), c.Param("itemKey"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload": result, "draft": view})
}

func (h *Handler) deleteMedia(c *gin.Context) {
	view, err := h.drafts.DeleteMedia(c.Request.Context(), h.client(c), c.Param("id"), c.Param("itemKey"), c.Param("mediaId"))
	if errors.Is(err, ErrMediaDeleteFailed) {
		// The media stays on the item; the draft lets the client drop its pending state.
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete media", "details": err.Error(), "draft": view})
		return
	}
	h.respondView(c, view, err)
}

func (h *Handler) toggleGroup(c *gin.Context) {
	var req struct {
		AssetNum string `json:"assetNum"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.ToggleGroup(c.Request.Context(), h.client(c), c.Param("id"), req.AssetNum)
	h.respondView(c, view, err)
}

func (h *Handler) addResource(c *gin.Context) {
	var req resources.AddInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	kind := models.ResourceKind(c.Param("kind"))
	view, err := h.drafts.AddResource(c.Request.Context(), h.client(c), c.Param("id"), kind, req)
	h.respondView(c, view, err)
}

func (h *Handler) removeResource(c *gin.Context) {
	view, err := h.drafts.RemoveResource(c.Request.Context(), h.client(c), c.Param("id"), c.Param("lineId"))
	h.respondView(c, view, err)
}

func (h *Handler) dismissWarning(c *gin.Context) {
	view, err := h.drafts.DismissResourceWarning(c.Request.Context(), h.client(c), c.Param("id"))
	h.respondView(c, view, err)
}

func (h *Handler) setStaff(c *gin.Context) {
	var req models.Staff
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.SetStaff(c.Request.Context(), h.client(c), c.Param("id"), req)
	h.respondView(c, view, err)
}

func (h *Handler) setTimeWindow(c *gin.Context) {
	var req models.TimeWindow
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.SetTimeWindow(c.Request.Context(), h.client(c), c.Param("id"), req)
	h.respondView(c, view, err)
}

func (h *Handler) quickSetTime(c *gin.Context) {
	var req struct {
		Preset string `json:"preset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.QuickSetTime(c.Request.Context(), h.client(c), c.Param("id"), req.Preset)
	h.respondView(c, view, err)
}

func (h *Handler) setFields(c *gin.Context) {
	var req struct {
		Fields map[string]string `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.SetFields(c.Request.Context(), h.client(c), c.Param("id"), req.Fields)
	h.respondView(c, view, err)
}

func (h *Handler) save(c *gin.Context) {
	view, err := h.drafts.Save(c.Request.Context(), h.client(c), c.Param("id"))
	h.respondView(c, view, err)
}

func (h *Handler) discard(c *gin.Context) {
	view, err := h.drafts.Discard(c.Request.Context(), h.client(c), c.Param("id"))
	h.respondView(c, view, err)
}

func (h *Handler) submitDraft(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view, err := h.drafts.Submit(c.Request.Context(), h.client(c), c.Param("id"), req)
	h.respondView(c, view, err)
}
