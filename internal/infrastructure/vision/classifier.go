package vision

import (
	"fmt"

	"github.com/shadematch/backend/internal/domain"
)

// Classifier modes
const (
	ModeCloud = "cloud"
	ModeLocal = "local"
	ModeMock  = "mock"
)

// NewClassifier builds the classifier backend for mode
func NewClassifier(mode string, cloud CloudConfig) (domain.Classifier, error) {
	switch mode {
	case ModeCloud:
		if cloud.APIKey == "" {
			return nil, fmt.Errorf("cloud classifier requires an API key")
		}
		return NewCloudClassifier(cloud), nil
	case ModeLocal, "":
		return NewLocalClassifier(), nil
	case ModeMock:
		return NewMockClassifier(), nil
	}
	return nil, fmt.Errorf("unknown classifier mode %q", mode)
}
