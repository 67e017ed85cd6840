package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"eam/internal/metrics"
	"eam/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrInvalidTarget = errors.New("invalid target url")

// Config holds the fixed credentials injected into proxied requests.
type Config struct {
	AuthHeader string        `mapstructure:"auth_header"`
	AuthValue  string        `mapstructure:"auth_value"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

var strippedHeaders = []string{
	"Host",
	"Origin",
	"Referer",
	"Accept-Encoding",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Handler struct {
	cfg     Config
	client  *http.Client
	limiter gin.HandlerFunc
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler builds the proxy handler. limiter may be nil.
func NewHandler(cfg Config, limiter gin.HandlerFunc, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Handler{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	handlers := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if h.limiter == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{h.limiter, fn}
	}

	router.OPTIONS("/proxy", h.preflight)
	router.GET("/proxy", handlers(h.forward)...)
	router.POST("/proxy", handlers(h.forward)...)
	router.GET("/image-proxy", handlers(h.image)...)
}

// ParseTarget accepts only absolute http(s) URLs.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing url parameter", ErrInvalidTarget)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, raw)
	}
	return u, nil
}

func (h *Handler) preflight(c *gin.Context) {
	middleware.SetCORSHeaders(c.Writer.Header())
	c.Status(http.StatusNoContent)
}

func (h *Handler) forward(c *gin.Context) {
	middleware.SetCORSHeaders(c.Writer.Header())

	target, err := ParseTarget(c.Query("url"))
	if err != nil {
		h.metrics.ProxyRequest("proxy", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid url", "details": err.Error()})
		return
	}

	req, err := h.upstreamRequest(c.Request.Context(), c.Request.Method, target, c.Request.Body, c.Request.Header)
	if err != nil {
		h.metrics.ProxyRequest("proxy", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("proxy request failed", zap.String("target", target.String()), zap.Error(err))
		h.metrics.ProxyRequest("proxy", "error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream request failed", "details": err.Error()})
		return
	}
	defer resp.Body.Close()

	h.metrics.ProxyRequest("proxy", "ok")
	c.DataFromReader(resp.StatusCode, resp.ContentLength, resp.Header.Get("Content-Type"), resp.Body, nil)
}

func (h *Handler) upstreamRequest(ctx context.Context, method string, target *url.URL, body io.Reader, header http.Header) (*http.Request, error) {
	if method == http.MethodGet {
		body = nil
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header = header.Clone()
	for _, name := range strippedHeaders {
		req.Header.Del(name)
	}
	if h.cfg.AuthHeader != "" {
		req.Header.Set(h.cfg.AuthHeader, h.cfg.AuthValue)
	}
	return req, nil
}

func (h *Handler) image(c *gin.Context) {
	target, err := ParseTarget(c.Query("url"))
	if err != nil {
		h.metrics.ProxyRequest("image", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid url", "details": err.Error()})
		return
	}

	req, err := h.upstreamRequest(c.Request.Context(), http.MethodGet, target, nil, http.Header{})
	if err != nil {
		h.metrics.ProxyRequest("image", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("image fetch failed", zap.String("target", target.String()), zap.Error(err))
		h.metrics.ProxyRequest("image", "error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch image", "details": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.metrics.ProxyRequest("image", "error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch image", "details": fmt.Sprintf("upstream returned %s", resp.Status)})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h.metrics.ProxyRequest("image", "ok")
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}
