package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/logger"
	"github.com/shadematch/backend/internal/usecase"
	"github.com/shadematch/backend/internal/version"
)

// multipartOverhead is the allowance for form fields and boundaries on top of the image
const multipartOverhead = 1 << 20

// RecommendationService is the usecase surface the handlers depend on
type RecommendationService interface {
	Recommend(ctx context.Context, upload []byte, opts domain.FilterOptions) (*domain.Recommendation, error)
	Browse(ctx context.Context, tone domain.SkinTone, opts domain.FilterOptions) (*domain.Recommendation, error)
	FilterChoices(ctx context.Context, tone domain.SkinTone) (domain.FilterChoices, error)
	Products(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error)
}

// HandlerConfig holds request limits applied by the handlers
type HandlerConfig struct {
	ClassifierMode     string
	MaxUploadBytes     int64
	DefaultPerCategory int
	MaxPerCategory     int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service RecommendationService
	cfg     HandlerConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(service RecommendationService, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.MaxPerCategory <= 0 || cfg.MaxPerCategory > domain.MaxPerCategoryLimit {
		cfg.MaxPerCategory = domain.MaxPerCategoryLimit
	}
	if cfg.DefaultPerCategory <= 0 || cfg.DefaultPerCategory > cfg.MaxPerCategory {
		cfg.DefaultPerCategory = min(domain.DefaultMaxPerCategory, cfg.MaxPerCategory)
	}
	return &Handler{service: service, cfg: cfg}
}

// filterParams are the filter selections shared by the upload and browse endpoints
type filterParams struct {
	Brand       string `form:"brand"`
	ProductType string `form:"product_type"`
	PerCategory int    `form:"per_category" binding:"min=0"`
}

// productsQuery is the query of the direct catalog products endpoint
type productsQuery struct {
	Category string `form:"category"`
	Brand    string `form:"brand"`
	MaxItems int    `form:"max_items" binding:"min=0"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "shadematch-backend",
		"version":    version.Version,
		"classifier": h.cfg.ClassifierMode,
	})
}

// Recommend handles a selfie upload and returns grouped product recommendations
func (h *Handler) Recommend(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes+multipartOverhead)

	var params filterParams
	if err := c.ShouldBind(&params); err != nil {
		h.respondError(c, uploadError(err))
		return
	}

	upload, err := h.readUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	recommendation, err := h.service.Recommend(c.Request.Context(), upload, h.filterOptions(params))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, recommendation)
}

// Browse returns grouped products for a known skin tone without an upload
func (h *Handler) Browse(c *gin.Context) {
	tone, err := domain.ParseSkinTone(c.Param("skinTone"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var params filterParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.respondError(c, requestError(err))
		return
	}

	recommendation, err := h.service.Browse(c.Request.Context(), tone, h.filterOptions(params))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, recommendation)
}

// FilterChoices returns the brand and product type options for a skin tone
func (h *Handler) FilterChoices(c *gin.Context) {
	tone, err := domain.ParseSkinTone(c.Param("skinTone"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	choices, err := h.service.FilterChoices(c.Request.Context(), tone)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, choices)
}

// Products returns ungrouped catalog products for a skin tone
func (h *Handler) Products(c *gin.Context) {
	tone, err := domain.ParseSkinTone(c.Param("skinTone"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var query productsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.respondError(c, requestError(err))
		return
	}

	products, err := h.service.Products(c.Request.Context(), domain.ProductQuery{
		SkinTone: tone,
		Category: query.Category,
		Brand:    query.Brand,
		MaxItems: query.MaxItems,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"skinTone": tone,
		"count":    len(products),
		"products": products,
	})
}

// readUpload reads the "image" form file, enforcing the upload limit
func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, requestError(errors.New("multipart field \"image\" is required"))
		}
		return nil, uploadError(err)
	}
	if header.Size > h.cfg.MaxUploadBytes {
		return nil, domain.ErrImageTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, requestError(err)
	}
	defer file.Close()

	return io.ReadAll(file)
}

// filterOptions applies the configured per-category limits to client selections
func (h *Handler) filterOptions(p filterParams) domain.FilterOptions {
	perCategory := p.PerCategory
	if perCategory == 0 {
		perCategory = h.cfg.DefaultPerCategory
	}
	perCategory = min(perCategory, h.cfg.MaxPerCategory)
	return usecase.NewFilterOptions(p.Brand, p.ProductType, perCategory)
}

// requestErr carries a client-side validation failure
type requestErr struct {
	err error
}

func (e *requestErr) Error() string { return e.err.Error() }

func (e *requestErr) Unwrap() []error { return []error{domain.ErrInvalidRequest, e.err} }

func requestError(err error) error {
	return &requestErr{err: err}
}

// uploadError reports a body over the size limit as ErrImageTooLarge
func uploadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return domain.ErrImageTooLarge
	}
	return requestError(err)
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Request failed", zap.Error(err))
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnknownSkinTone):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrEmptyImage),
		errors.Is(err, domain.ErrUnsupportedImage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
