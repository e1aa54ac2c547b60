package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shadematch/backend/config"
	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/infrastructure/cache"
	"github.com/shadematch/backend/internal/infrastructure/catalog"
	"github.com/shadematch/backend/internal/infrastructure/vision"
	"github.com/shadematch/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
			MaxUploadBytes: 1 << 20,
		},
		Classifier: config.ClassifierConfig{Mode: "local"},
		Cache:      config.CacheConfig{Type: "memory"},
		Recommend:  config.RecommendConfig{DefaultPerCategory: 3, MaxPerCategory: 10},
	}
}

func testHandlerConfig(cfg *config.Config) HandlerConfig {
	return HandlerConfig{
		ClassifierMode:     cfg.Classifier.Mode,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		DefaultPerCategory: cfg.Recommend.DefaultPerCategory,
		MaxPerCategory:     cfg.Recommend.MaxPerCategory,
	}
}

// setupTestRouter wires the real pipeline: embedded catalog, local classifier and memory cache
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	products, err := catalog.NewStaticCatalog()
	require.NoError(t, err)

	classifier, err := vision.NewFallbackClassifier(vision.NewLocalClassifier(), vision.FallbackConfig{})
	require.NoError(t, err)

	memoryCache := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = memoryCache.Close() })

	service := usecase.NewRecommendationService(
		vision.NewPreparer(0, 0),
		classifier,
		products,
		memoryCache,
		usecase.RecommendationServiceConfig{},
	)

	cfg := testConfig()
	return SetupRouter(cfg, NewHandler(service, testHandlerConfig(cfg)), zap.NewNop(), nil)
}

// fakeService returns canned results so error mapping can be tested in isolation
type fakeService struct {
	err error
}

func (f *fakeService) Recommend(ctx context.Context, upload []byte, opts domain.FilterOptions) (*domain.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{SkinTone: domain.SkinToneMedium, Filters: opts, Categories: domain.GroupedResult{}, Empty: true}, nil
}

func (f *fakeService) Browse(ctx context.Context, tone domain.SkinTone, opts domain.FilterOptions) (*domain.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Recommendation{SkinTone: tone, Filters: opts, Categories: domain.GroupedResult{}, Empty: true}, nil
}

func (f *fakeService) FilterChoices(ctx context.Context, tone domain.SkinTone) (domain.FilterChoices, error) {
	return domain.FilterChoices{}, f.err
}

func (f *fakeService) Products(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	return nil, f.err
}

func setupFakeRouter(service RecommendationService) *gin.Engine {
	cfg := testConfig()
	return SetupRouter(cfg, NewHandler(service, testHandlerConfig(cfg)), zap.NewNop(), nil)
}

// selfieJPEG encodes a solid image in the given colour
func selfieJPEG(t *testing.T, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// uploadRequest builds a multipart request with an optional image and form fields
func uploadRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "selfie.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeRecommendation(t *testing.T, w *httptest.ResponseRecorder) domain.Recommendation {
	t.Helper()
	var rec domain.Recommendation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec), "body: %s", w.Body.String())
	return rec
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "shadematch-backend" {
			t.Errorf("service = %v, want shadematch-backend", response["service"])
		}
		if response["classifier"] != "local" {
			t.Errorf("classifier = %v, want local", response["classifier"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(t)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	// one request so the HTTP series exist
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shadematch_http_requests_total")
}

func TestRecommendEndpoint(t *testing.T) {
	fair := color.RGBA{R: 240, G: 200, B: 180, A: 255}

	t.Run("classifies the upload and groups products", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, selfieJPEG(t, fair), nil))

		require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
		rec := decodeRecommendation(t, w)

		assert.Equal(t, domain.SkinToneFair, rec.SkinTone)
		assert.Equal(t, domain.SourceLocal, rec.Source)
		assert.False(t, rec.Empty)
		assert.NotEmpty(t, rec.Categories)
		assert.NotEmpty(t, rec.Choices.Brands)
		for _, group := range rec.Categories {
			assert.LessOrEqual(t, len(group.Products), domain.DefaultMaxPerCategory)
			for _, p := range group.Products {
				assert.Equal(t, group.Category, p.Category)
			}
		}
	})

	t.Run("second upload of the same image is served from cache", func(t *testing.T) {
		router := setupTestRouter(t)
		selfie := selfieJPEG(t, fair)

		first := httptest.NewRecorder()
		router.ServeHTTP(first, uploadRequest(t, selfie, nil))
		require.Equal(t, http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		router.ServeHTTP(second, uploadRequest(t, selfie, nil))
		require.Equal(t, http.StatusOK, second.Code)

		assert.Equal(t, domain.SourceCache, decodeRecommendation(t, second).Source)
	})

	t.Run("applies form filters", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, selfieJPEG(t, fair), map[string]string{
			"brand":        "All Brands",
			"product_type": "Lip",
			"per_category": "1",
		}))

		require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
		rec := decodeRecommendation(t, w)
		assert.Equal(t, domain.FilterOptions{MaxPerCategory: 1, ProductType: "lip"}, rec.Filters)
		for _, group := range rec.Categories {
			assert.Len(t, group.Products, 1)
			assert.Contains(t, strings.ToLower(group.Products[0].Name), "lip")
		}
	})

	t.Run("non-skin image falls back to the default tone", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, selfieJPEG(t, color.RGBA{R: 100, G: 149, B: 237, A: 255}), nil))

		require.Equal(t, http.StatusOK, w.Code)
		rec := decodeRecommendation(t, w)
		assert.Equal(t, domain.DefaultSkinTone, rec.SkinTone)
		assert.Equal(t, domain.SourceFallback, rec.Source)
	})

	t.Run("missing image is a bad request", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, nil, map[string]string{"brand": "MAC"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "image")
	})

	t.Run("empty image is a bad request", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, []byte{}, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrEmptyImage.Error())
	})

	t.Run("unsupported image is a bad request", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, []byte("%PDF-1.4 not an image"), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative per_category is a bad request", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, selfieJPEG(t, fair), map[string]string{"per_category": "-1"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized upload is rejected", func(t *testing.T) {
		cfg := testConfig()
		handlerCfg := testHandlerConfig(cfg)
		handlerCfg.MaxUploadBytes = 1024
		router := SetupRouter(cfg, NewHandler(&fakeService{}, handlerCfg), zap.NewNop(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, bytes.Repeat([]byte{0xff}, 4096), nil))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("requires POST", func(t *testing.T) {
		router := setupTestRouter(t)

		for _, method := range []string{"GET", "PUT", "DELETE"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/recommendations", nil))
			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestBrowseEndpoint(t *testing.T) {
	t.Run("groups the catalog for a skin tone", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/medium?per_category=2", nil))

		require.Equal(t, http.StatusOK, w.Code)
		rec := decodeRecommendation(t, w)
		assert.Equal(t, domain.SkinToneMedium, rec.SkinTone)
		assert.Equal(t, 2, rec.Filters.MaxPerCategory)
		for _, group := range rec.Categories {
			assert.LessOrEqual(t, len(group.Products), 2)
		}
	})

	t.Run("skin tone is case-insensitive", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/DARK", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.SkinToneDark, decodeRecommendation(t, w).SkinTone)
	})

	t.Run("unknown brand yields an empty result", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/fair?brand=NoSuchBrand", nil))

		require.Equal(t, http.StatusOK, w.Code)
		rec := decodeRecommendation(t, w)
		assert.True(t, rec.Empty)
		assert.Empty(t, rec.Categories)
		assert.Contains(t, w.Body.String(), `"categories":[]`)
	})

	t.Run("per_category is clamped to the configured maximum", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/fair?per_category=50", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.MaxPerCategoryLimit, decodeRecommendation(t, w).Filters.MaxPerCategory)
	})

	t.Run("unknown skin tone is not found", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/olive", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFilterChoicesEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/medium/filters", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var choices domain.FilterChoices
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &choices))
	require.NotEmpty(t, choices.Brands)
	require.NotEmpty(t, choices.ProductTypes)
	assert.Equal(t, domain.AllBrandsSentinel, choices.Brands[0])
	assert.Equal(t, domain.AllProductsSentinel, choices.ProductTypes[0])
	assert.Contains(t, choices.Brands, "Fenty Beauty")
}

func TestProductsEndpoint(t *testing.T) {
	t.Run("filters by brand and limits results", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/medium/products?brand=Fenty+Beauty&max_items=2", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			SkinTone string           `json:"skinTone"`
			Count    int              `json:"count"`
			Products []domain.Product `json:"products"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "medium", response.SkinTone)
		assert.Equal(t, 2, response.Count)
		for _, p := range response.Products {
			assert.Equal(t, "Fenty Beauty", p.Brand)
		}
	})

	t.Run("negative max_items is a bad request", func(t *testing.T) {
		router := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/medium/products?max_items=-3", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"upstream error record", &domain.UpstreamError{Message: "Processing failed"}, http.StatusBadGateway},
		{"unknown skin tone", domain.ErrUnknownSkinTone, http.StatusNotFound},
		{"image too large", domain.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"invalid request", domain.ErrInvalidRequest, http.StatusBadRequest},
		{"unexpected failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupFakeRouter(&fakeService{err: tt.err})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/fair", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var response map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.err.Error(), response["error"])
		})
	}
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:5173")
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, "true")
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Errorf("%s header not set", RequestIDHeader)
	}
}

// TestRecoveryMiddleware tests panic recovery through the full router
func TestRecoveryMiddleware(t *testing.T) {
	router := setupTestRouter(t)

	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	cfg := testConfig()
	limiter := NewRateLimiter(60, 1)
	defer limiter.Stop()
	router := SetupRouter(cfg, NewHandler(&fakeService{}, testHandlerConfig(cfg)), zap.NewNop(), limiter)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/api/v1/catalog/fair", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("GET", "/api/v1/catalog/fair", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// health stays outside the limit
	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

// TestJSONResponses tests that API responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/catalog/fair"},
		{"GET", "/api/v1/catalog/fair/filters"},
		{"GET", "/api/v1/catalog/fair/products"},
		{"GET", "/api/v1/catalog/unknown"},
		{"POST", "/api/v1/recommendations"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouter(t)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(endpoint.method, endpoint.path, nil))

			if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q, want application/json; charset=utf-8", got)
			}

			var response interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Errorf("Response should be valid JSON, got error: %v", err)
			}
		})
	}
}
