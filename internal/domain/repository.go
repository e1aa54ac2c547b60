package domain

import (
	"context"
	"image"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Catalog is the static lookup table from skin tone to products
type Catalog interface {
	Lookup(ctx context.Context, tone SkinTone) ([]CatalogEntry, error)
	Query(ctx context.Context, query ProductQuery) ([]Product, error)
}

// Classifier infers a raw skin tone label from a prepared image
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (string, error)
	Name() string
}

// ToneClassifier resolves an image to a skin tone, falling back when the
// underlying classifier is unavailable. It never fails.
type ToneClassifier interface {
	ClassifyTone(ctx context.Context, img image.Image) Classification
}

// PreparedImage is an upload decoded, oriented and downscaled for classification
type PreparedImage struct {
	Image image.Image
	// Hash is a perceptual hash of the image, stable across re-encodes of the same photo
	Hash   string
	Format string
}

// ImagePreparer turns raw upload bytes into a PreparedImage
type ImagePreparer interface {
	Prepare(data []byte) (*PreparedImage, error)
}
