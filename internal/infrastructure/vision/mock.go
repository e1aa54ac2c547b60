package vision

import (
	"context"
	"image"

	"github.com/shadematch/backend/internal/domain"
)

// MockClassifier stands in for a real backend and never returns a label,
// so every request resolves through the fallback
type MockClassifier struct{}

// NewMockClassifier creates a MockClassifier
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// Name implements domain.Classifier
func (c *MockClassifier) Name() string {
	return "mock"
}

// Classify implements domain.Classifier
func (c *MockClassifier) Classify(ctx context.Context, img image.Image) (string, error) {
	return "", domain.ErrClassifierUnavailable
}
