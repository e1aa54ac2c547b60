package vision

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/logger"
)

// Fallback policies
const (
	PolicyFixed  = "fixed"
	PolicyRandom = "random"
)

// FallbackConfig selects what a FallbackClassifier returns when its primary fails
type FallbackConfig struct {
	Policy string
	Tone   domain.SkinTone
	// Rand drives the random policy; nil seeds a fresh source
	Rand *rand.Rand
}

// FallbackClassifier wraps a Classifier so classification never fails
type FallbackClassifier struct {
	primary domain.Classifier
	policy  string
	tone    domain.SkinTone

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackClassifier creates a FallbackClassifier around primary
func NewFallbackClassifier(primary domain.Classifier, cfg FallbackConfig) (*FallbackClassifier, error) {
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyFixed
	}
	if policy != PolicyFixed && policy != PolicyRandom {
		return nil, fmt.Errorf("unknown fallback policy %q", cfg.Policy)
	}

	tone := cfg.Tone
	if tone == "" {
		tone = domain.DefaultSkinTone
	}
	tone, err := domain.ParseSkinTone(string(tone))
	if err != nil {
		return nil, err
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &FallbackClassifier{
		primary: primary,
		policy:  policy,
		tone:    tone,
		rng:     rng,
	}, nil
}

// ClassifyTone implements domain.ToneClassifier
func (f *FallbackClassifier) ClassifyTone(ctx context.Context, img image.Image) domain.Classification {
	start := time.Now()

	label, err := f.primary.Classify(ctx, img)
	if err != nil {
		tone := f.fallbackTone()
		logger.FromContext(ctx).Warn("Classifier unavailable, using fallback",
			zap.String("classifier", f.primary.Name()),
			zap.String("policy", f.policy),
			zap.String("skin_tone", string(tone)),
			zap.Error(err),
		)
		return domain.Classification{
			SkinTone: tone,
			Source:   domain.SourceFallback,
			Duration: time.Since(start),
		}
	}

	return domain.Classification{
		SkinTone: domain.MapLabel(label),
		Source:   f.primary.Name(),
		Label:    label,
		Duration: time.Since(start),
	}
}

func (f *FallbackClassifier) fallbackTone() domain.SkinTone {
	if f.policy != PolicyRandom {
		return f.tone
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.AllSkinTones[f.rng.IntN(len(domain.AllSkinTones))]
}
