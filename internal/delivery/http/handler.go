package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
	"github.com/ecolens/backend/internal/infrastructure/htmldoc"
	"github.com/ecolens/backend/internal/usecase"
)

// Version is reported by the health check
var Version = "1.0.0"

const (
	recommendationCount = 3
	healthCheckTimeout  = 2 * time.Second
	defaultContentType  = "text/html; charset=utf-8"
)

// DocumentDetector runs one detection pass over a document
type DocumentDetector interface {
	Detect(doc domain.Document) domain.Detection
}

// ContextManager is the browsing-context registry behind the snapshot endpoints
type ContextManager interface {
	Snapshot(id string, snap usecase.Snapshot) (usecase.ContextSummary, error)
	Get(id string) (usecase.ContextSummary, error)
	Close(id string) error
	SetAutoPopup(enabled bool) int
	AutoPopup() bool
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerDeps groups the collaborators of a Handler
type HandlerDeps struct {
	Sustainability domain.SustainabilityService
	Detector       DocumentDetector
	Contexts       ContextManager
	Cache          Pinger
	ViewportHeight float64
	Logger         *zap.Logger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sustainability domain.SustainabilityService
	detector       DocumentDetector
	contexts       ContextManager
	cache          Pinger
	viewport       float64
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps HandlerDeps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{
		sustainability: deps.Sustainability,
		detector:       deps.Detector,
		contexts:       deps.Contexts,
		cache:          deps.Cache,
		viewport:       deps.ViewportHeight,
		logger:         deps.Logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "ecolens-backend",
		"version": Version,
	}
	status := http.StatusOK

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["cache"] = "ok"
		}
	}

	c.JSON(status, body)
}

// GetProductInfo returns the sustainability data of the products matching a name
func (h *Handler) GetProductInfo(c *gin.Context) {
	if h.sustainability == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sustainability service not configured"})
		return
	}

	var req domain.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_name is required"})
		return
	}

	products, err := h.sustainability.LookupProduct(c.Request.Context(), req.ProductName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetRecommendations returns the best-rated products of the requested categories
func (h *Handler) GetRecommendations(c *gin.Context) {
	if h.sustainability == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sustainability service not configured"})
		return
	}

	var req domain.RecommendationsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	recommendations, err := h.sustainability.Recommendations(c.Request.Context(), req.Categories, recommendationCount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recommendations)
}

type detectRequest struct {
	URL         string `json:"url" binding:"required"`
	HTML        string `json:"html" binding:"required"`
	ContentType string `json:"content_type"`
}

// Detect classifies a page and extracts its ranked product candidates once
func (h *Handler) Detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and html are required"})
		return
	}

	doc, err := htmldoc.Load(req.URL, []byte(req.HTML), contentTypeOrDefault(req.ContentType), htmldoc.WithViewportHeight(h.viewport))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to parse html"})
		return
	}

	c.JSON(http.StatusOK, h.detector.Detect(doc))
}

type snapshotRequest struct {
	URL         string            `json:"url" binding:"required"`
	HTML        string            `json:"html"`
	ContentType string            `json:"content_type"`
	Mutations   []domain.Mutation `json:"mutations"`
}

// PostSnapshot feeds the current state of a browsing context's page
func (h *Handler) PostSnapshot(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	summary, err := h.contexts.Snapshot(c.Param("id"), usecase.Snapshot{
		URL:         req.URL,
		HTML:        []byte(req.HTML),
		ContentType: contentTypeOrDefault(req.ContentType),
		Mutations:   req.Mutations,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, summary)
}

// GetContext returns the scan state, candidates and report of a browsing context
func (h *Handler) GetContext(c *gin.Context) {
	summary, err := h.contexts.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeleteContext stops watching a browsing context
func (h *Handler) DeleteContext(c *gin.Context) {
	if err := h.contexts.Close(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type autoPopupRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetAutoPopup returns the auto-popup setting
func (h *Handler) GetAutoPopup(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": h.contexts.AutoPopup()})
}

// PutAutoPopup updates the auto-popup setting of every browsing context
func (h *Handler) PutAutoPopup(c *gin.Context) {
	var req autoPopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	notified := h.contexts.SetAutoPopup(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled, "contexts": notified})
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrProductNotFound):
		status, message = http.StatusNotFound, "No sustainability data found for this product"
	case errors.Is(err, domain.ErrContextNotFound):
		status, message = http.StatusNotFound, "browsing context not found"
	case errors.Is(err, domain.ErrContextClosed):
		status, message = http.StatusGone, "browsing context closed"
	case errors.Is(err, domain.ErrRateLimited):
		status, message = http.StatusTooManyRequests, "upstream rate limit exceeded"
	case errors.Is(err, domain.ErrUpstreamFailure):
		status, message = http.StatusBadGateway, "sustainability data source unavailable"
	default:
		h.logger.Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message})
}

func contentTypeOrDefault(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return defaultContentType
	}
	return contentType
}
