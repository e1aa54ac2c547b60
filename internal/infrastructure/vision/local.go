package vision

import (
	"context"
	"image"
	"image/color"

	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/metrics"
)

// Skin pixel bounds in YCbCr space
const (
	skinCbMin = 77
	skinCbMax = 127
	skinCrMin = 133
	skinCrMax = 173
)

// Mean skin luma thresholds separating the tones
const (
	fairLumaMin   = 170
	mediumLumaMin = 110
)

// minSkinFraction is the share of sampled pixels that must look like skin
const minSkinFraction = 0.02

// maxSamplesPerSide bounds the sampling grid
const maxSamplesPerSide = 200

// LocalClassifier estimates skin tone from the mean brightness of skin-coloured
// pixels in the central region of the image. It needs no network access.
type LocalClassifier struct{}

// NewLocalClassifier creates a LocalClassifier
func NewLocalClassifier() *LocalClassifier {
	return &LocalClassifier{}
}

// Name implements domain.Classifier
func (c *LocalClassifier) Name() string {
	return domain.SourceLocal
}

// Classify implements domain.Classifier
func (c *LocalClassifier) Classify(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	luma, ok := meanSkinLuma(img)
	if !ok {
		metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceLocal, "no_face").Inc()
		return "", domain.ErrNoFaceDetected
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(domain.SourceLocal, "success").Inc()

	switch {
	case luma >= fairLumaMin:
		return string(domain.SkinToneFair), nil
	case luma >= mediumLumaMin:
		return string(domain.SkinToneMedium), nil
	default:
		return string(domain.SkinToneDark), nil
	}
}

// meanSkinLuma samples the middle 60% of the image, where a selfie's face usually is
func meanSkinLuma(img image.Image) (float64, bool) {
	b := img.Bounds()
	x0 := b.Min.X + b.Dx()/5
	x1 := b.Max.X - b.Dx()/5
	y0 := b.Min.Y + b.Dy()/5
	y1 := b.Max.Y - b.Dy()/5
	if x1 <= x0 || y1 <= y0 {
		x0, x1, y0, y1 = b.Min.X, b.Max.X, b.Min.Y, b.Max.Y
	}

	stepX := max(1, (x1-x0)/maxSamplesPerSide)
	stepY := max(1, (y1-y0)/maxSamplesPerSide)

	var sum float64
	var skin, total int
	for y := y0; y < y1; y += stepY {
		for x := x0; x < x1; x += stepX {
			total++
			r, g, bl, _ := img.At(x, y).RGBA()
			yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			if cb < skinCbMin || cb > skinCbMax || cr < skinCrMin || cr > skinCrMax {
				continue
			}
			skin++
			sum += float64(yy)
		}
	}

	if total == 0 || float64(skin)/float64(total) < minSkinFraction {
		return 0, false
	}
	return sum / float64(skin), true
}
