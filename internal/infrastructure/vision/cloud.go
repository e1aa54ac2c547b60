package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/logger"
	"github.com/shadematch/backend/internal/metrics"
)

// TonePrompt asks a multimodal model for one of the catalog tones
const TonePrompt = `You estimate the visible skin tone of the person in a selfie for makeup shade matching.
Answer with exactly one word:
- FAIR for light or pale skin
- MEDIUM for medium, tan or olive skin
- DARK for deep or rich skin

If no face is visible, answer NONE.

Answer:`

const (
	maxAttempts      = 3
	defaultModel     = openai.GPT4oMini
	defaultTimeout   = 30 * time.Second
	defaultRetryBase = 500 * time.Millisecond
	jpegQuality      = 85

	breakerName      = "vision-api"
	breakerThreshold = 5
	breakerTimeout   = time.Minute
)

// CloudConfig holds the settings for the OpenAI-compatible vision backend
type CloudConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	// RetryBaseDelay is the first backoff step; it doubles after every failed attempt
	RetryBaseDelay time.Duration
	// BreakerThreshold is the number of consecutive failed calls that opens the circuit
	BreakerThreshold uint32
	// BreakerTimeout is how long the circuit stays open before a trial call
	BreakerTimeout time.Duration
}

// CloudClassifier asks a multimodal chat model to label the skin tone
type CloudClassifier struct {
	client      *openai.Client
	model       string
	rateLimiter *rate.Limiter
	retryBase   time.Duration
	breaker     *gobreaker.CircuitBreaker[string]
}

// NewCloudClassifier creates a CloudClassifier
func NewCloudClassifier(cfg CloudConfig) *CloudClassifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = breakerThreshold
	}
	openTimeout := cfg.BreakerTimeout
	if openTimeout <= 0 {
		openTimeout = breakerTimeout
	}

	metrics.ClassifierCircuitState.WithLabelValues(breakerName).Set(0)

	return &CloudClassifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		rateLimiter: rate.NewLimiter(limit, 1),
		retryBase:   retryBase,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// A face-less photo or a cancelled request says nothing about the API
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, domain.ErrNoFaceDetected) ||
					errors.Is(err, context.Canceled) ||
					errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				metrics.ClassifierCircuitState.WithLabelValues(name).Set(float64(to))
			},
		}),
	}
}

// Name implements domain.Classifier
func (c *CloudClassifier) Name() string {
	return domain.SourceCloud
}

// Classify implements domain.Classifier. Transient failures are retried up to
// three times; every returned error wraps domain.ErrClassifierUnavailable
// unless the model reports that no face is visible. While the circuit is
// open calls fail immediately.
func (c *CloudClassifier) Classify(ctx context.Context, img image.Image) (string, error) {
	label, err := c.breaker.Execute(func() (string, error) {
		return c.classify(ctx, img)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceCloud, "circuit_open").Inc()
		logger.FromContext(ctx).Warn("Vision circuit open, skipping request")
		return "", fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}
	return label, err
}

// classify sends one labelled request, retrying transient failures
func (c *CloudClassifier) classify(ctx context.Context, img image.Image) (string, error) {
	log := logger.FromContext(ctx)

	dataURL, err := encodeDataURL(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   5,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: TonePrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %v", domain.ErrClassifierUnavailable, err)
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = parseAPIError(err)
			metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceCloud, "error").Inc()
			log.Warn("Vision request failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if !isRetryable(err) || attempt == maxAttempts {
				break
			}
			if err := sleepCtx(ctx, exponentialBackoff(c.retryBase, attempt)); err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
			}
			continue
		}

		if len(resp.Choices) == 0 {
			metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceCloud, "empty_response").Inc()
			return "", fmt.Errorf("empty vision response: %w", domain.ErrClassifierUnavailable)
		}

		label := strings.TrimSpace(resp.Choices[0].Message.Content)
		if strings.HasPrefix(strings.ToUpper(label), "NONE") {
			metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceCloud, "no_face").Inc()
			return "", domain.ErrNoFaceDetected
		}

		metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceCloud, "success").Inc()
		log.Debug("Vision result", zap.String("label", label), zap.Int("attempt", attempt))
		return label, nil
	}

	return "", lastErr
}

// exponentialBackoff returns base * 2^(attempt-1)
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable reports whether a failed call may succeed on retry:
// rate limiting, server errors and network failures
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return true
	}

	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// parseAPIError wraps every failure with domain.ErrClassifierUnavailable
func parseAPIError(err error) error {
	wrap := domain.ErrClassifierUnavailable

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("vision API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("vision API error %d: %w", reqErr.HTTPStatusCode, wrap)
	}

	return fmt.Errorf("vision request failed: %v: %w", err, wrap)
}

// encodeDataURL encodes img as a base64 JPEG data URL
func encodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
