package pages

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"eam/internal/health"
	"eam/internal/middleware"
	"eam/internal/session"
	"eam/pkg/metadata"
	"eam/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// OverrideMaxAge is how long the maintenance override cookie stays valid.
const OverrideMaxAge = 3600

// WorkOrderLister feeds the list pages.
type WorkOrderLister interface {
	List(ctx context.Context, t metadata.WorkOrderType) ([]models.WorkOrderSummary, error)
}

type Handler struct {
	templates map[string]*template.Template
	store     session.Store
	orders    WorkOrderLister
	checker   health.Checker
	secure    bool
	logger    *zap.Logger
}

func NewHandler(store session.Store, orders WorkOrderLister, checker health.Checker, secure bool, logger *zap.Logger) *Handler {
	templates := make(map[string]*template.Template)
	for _, name := range []string{"login", "list", "detail", "report", "admin", "maintenance"} {
		templates[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}

	return &Handler{
		templates: templates,
		store:     store,
		orders:    orders,
		checker:   checker,
		secure:    secure,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/", h.home)
	router.GET("/login", h.login)
	router.GET("/logout", h.logout)
	router.GET("/pm", h.list(metadata.TypePreventive))
	router.GET("/cm", h.list(metadata.TypeCorrective))
	router.GET("/pm/:id", h.detail(metadata.TypePreventive))
	router.GET("/cm/:id", h.detail(metadata.TypeCorrective))
	router.GET("/report", h.report)
	router.GET("/admin", h.admin)
	router.POST("/admin/maintenance-override", h.setOverride)
	router.DELETE("/admin/maintenance-override", h.clearOverride)
	router.GET(middleware.MaintenancePath, h.maintenance)
}

type page struct {
	Title     string
	ShowNav   bool
	LoggedIn  bool
	Username  string
	ActiveTab string

	Type           metadata.WorkOrderType
	Orders         []models.WorkOrderSummary
	WorkOrderID    string
	AbnormalTypes  []metadata.AbnormalType
	Health         health.Payload
	OverrideActive bool
	Next           string
	Error          string
}

func (h *Handler) client(c *gin.Context) *session.Client {
	return session.NewClient(h.store, session.ID(c))
}

// newPage fills the session part of a page. tab, when set, becomes the
// remembered active tab.
func (h *Handler) newPage(c *gin.Context, title, tab string) page {
	ctx := c.Request.Context()
	client := h.client(c)

	if tab != "" {
		if err := client.SetActiveTab(ctx, tab); err != nil {
			h.logger.Warn("unable to store active tab", zap.Error(err))
		}
	}

	p := page{Title: title, ShowNav: true, ActiveTab: tab}
	st, err := client.Init(ctx)
	if err != nil {
		h.logger.Warn("unable to read session", zap.Error(err))
		return p
	}
	p.LoggedIn = st.LoggedIn
	p.Username = st.Username
	if p.ActiveTab == "" {
		p.ActiveTab = st.ActiveTab
	}
	return p
}

func (h *Handler) render(c *gin.Context, status int, name string, data page) {
	c.Header("Cache-Control", "no-store")
	c.Render(status, render.HTML{Template: h.templates[name], Name: "layout", Data: data})
}

// home sends the user back to the last tab they used.
func (h *Handler) home(c *gin.Context) {
	ctx := c.Request.Context()
	client := h.client(c)

	loggedIn, err := client.LoggedIn(ctx)
	if err != nil || !loggedIn {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	tab, _ := client.ActiveTab(ctx)
	switch tab {
	case "cm", "report":
		c.Redirect(http.StatusFound, "/"+tab)
	default:
		c.Redirect(http.StatusFound, "/pm")
	}
}

func (h *Handler) login(c *gin.Context) {
	p := h.newPage(c, "Log in", "")
	p.ShowNav = false
	p.Next = "/"
	h.render(c, http.StatusOK, "login", p)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.client(c).Clear(c.Request.Context()); err != nil {
		h.logger.Error("unable to clear session", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) list(t metadata.WorkOrderType) gin.HandlerFunc {
	title := "Preventive maintenance"
	if t == metadata.TypeCorrective {
		title = "Corrective maintenance"
	}

	return func(c *gin.Context) {
		p := h.newPage(c, title, string(t))
		p.Type = t

		orders, err := h.orders.List(c.Request.Context(), t)
		if err != nil {
			h.logger.Error("unable to list work orders", zap.String("type", string(t)), zap.Error(err))
			p.Error = "Work orders could not be loaded"
		}
		p.Orders = orders
		h.render(c, http.StatusOK, "list", p)
	}
}

func (h *Handler) detail(t metadata.WorkOrderType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.newPage(c, c.Param("id"), string(t))
		p.Type = t
		p.WorkOrderID = c.Param("id")
		h.render(c, http.StatusOK, "detail", p)
	}
}

func (h *Handler) report(c *gin.Context) {
	p := h.newPage(c, "Report fault", "report")
	p.AbnormalTypes = metadata.AbnormalTypes()
	h.render(c, http.StatusOK, "report", p)
}

func (h *Handler) currentHealth(c *gin.Context) health.Payload {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	p, err := h.checker.Check(ctx)
	if err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		return health.Payload{Status: health.StatusError, Message: health.StatusError.DefaultMessage()}
	}
	return p
}

func (h *Handler) admin(c *gin.Context) {
	p := h.newPage(c, "Administration", "")
	p.Health = h.currentHealth(c)
	v, err := c.Cookie(middleware.MaintenanceCookie)
	p.OverrideActive = err == nil && v == "true"
	h.render(c, http.StatusOK, "admin", p)
}

func (h *Handler) setOverride(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.MaintenanceCookie, "true", OverrideMaxAge, "/", "", h.secure, true)
	h.logger.Info("maintenance override enabled", zap.String("session_id", session.ID(c)))
	c.JSON(http.StatusOK, gin.H{"override": true, "expiresIn": OverrideMaxAge})
}

func (h *Handler) clearOverride(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.MaintenanceCookie, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"override": false})
}

func (h *Handler) maintenance(c *gin.Context) {
	p := h.newPage(c, "Maintenance", "")
	p.ShowNav = false
	p.Health = h.currentHealth(c)
	if p.Health.Status == health.StatusOK {
		p.Health.Message = "The system is back. You can continue working."
		h.render(c, http.StatusOK, "maintenance", p)
		return
	}
	c.Header("Retry-After", "60")
	h.render(c, http.StatusServiceUnavailable, "maintenance", p)
}
