package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrEmptyImage is returned when the uploaded file has no content
	ErrEmptyImage = errors.New("uploaded image is empty")

	// ErrUnsupportedImage is returned when the upload is not a decodable jpeg, png or webp
	ErrUnsupportedImage = errors.New("unsupported image format")

	// ErrImageTooLarge is returned when the upload exceeds the configured size
	ErrImageTooLarge = errors.New("uploaded image is too large")

	// ErrUnknownSkinTone is returned when a skin tone is outside fair/medium/dark
	ErrUnknownSkinTone = errors.New("unknown skin tone")

	// ErrClassifierUnavailable is returned when the skin tone classifier cannot run
	ErrClassifierUnavailable = errors.New("skin tone classifier unavailable")

	// ErrNoFaceDetected is returned when no skin region could be found in the image
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// UpstreamError is the resolved form of a catalog error record. It stops the
// pipeline before any product is categorized.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %s", e.Message)
}
