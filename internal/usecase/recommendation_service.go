package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shadematch/backend/internal/domain"
	"github.com/shadematch/backend/internal/logger"
	"github.com/shadematch/backend/internal/metrics"
)

// RecommendationServiceConfig holds configuration for the recommendation service
type RecommendationServiceConfig struct {
	CacheTTL time.Duration
}

// RecommendationService turns a selfie into grouped product recommendations
type RecommendationService struct {
	preparer   domain.ImagePreparer
	classifier domain.ToneClassifier
	catalog    domain.Catalog
	cache      domain.CacheRepository
	cacheTTL   time.Duration
}

// NewRecommendationService creates a new recommendation service with dependencies.
// cache may be nil, in which case every upload is classified.
func NewRecommendationService(
	preparer domain.ImagePreparer,
	classifier domain.ToneClassifier,
	catalog domain.Catalog,
	cache domain.CacheRepository,
	config RecommendationServiceConfig,
) *RecommendationService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &RecommendationService{
		preparer:   preparer,
		classifier: classifier,
		catalog:    catalog,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

// Recommend classifies the uploaded image and returns the grouped catalog products
// for the inferred skin tone.
// Flow: prepare image -> check cache -> classify -> catalog lookup -> group and filter
func (s *RecommendationService) Recommend(
	ctx context.Context,
	upload []byte,
	opts domain.FilterOptions,
) (*domain.Recommendation, error) {
	start := time.Now()

	prepared, err := s.preparer.Prepare(upload)
	if err != nil {
		return nil, err
	}

	classification := s.classify(ctx, prepared)

	recommendation, err := s.Browse(ctx, classification.SkinTone, opts)
	if err != nil {
		return nil, err
	}

	recommendation.Source = classification.Source
	recommendation.ProcessingTime = time.Since(start).Seconds()

	logger.FromContext(ctx).Info("Recommendation completed",
		zap.String("skin_tone", string(classification.SkinTone)),
		zap.String("source", classification.Source),
		zap.Int("products", recommendation.Categories.Count()),
		zap.Float64("seconds", recommendation.ProcessingTime),
	)

	return recommendation, nil
}

// Browse runs the catalog and engine part of the pipeline for a known skin tone.
// Clients call it again on every filter change instead of re-uploading.
func (s *RecommendationService) Browse(
	ctx context.Context,
	tone domain.SkinTone,
	opts domain.FilterOptions,
) (*domain.Recommendation, error) {
	products, err := s.products(ctx, tone)
	if err != nil {
		return nil, err
	}

	grouped := GroupAndFilter(products, opts)

	return &domain.Recommendation{
		SkinTone: tone,
		Filters:  opts,
		Choices: domain.FilterChoices{
			Brands:       UniqueBrands(products),
			ProductTypes: UniqueProductTypes(products),
		},
		Categories: grouped,
		Empty:      len(grouped) == 0,
	}, nil
}

// FilterChoices returns the brand and product type options for a skin tone,
// each list led by its "all" sentinel
func (s *RecommendationService) FilterChoices(ctx context.Context, tone domain.SkinTone) (domain.FilterChoices, error) {
	products, err := s.products(ctx, tone)
	if err != nil {
		return domain.FilterChoices{}, err
	}

	return WithChoiceSentinels(domain.FilterChoices{
		Brands:       UniqueBrands(products),
		ProductTypes: UniqueProductTypes(products),
	}), nil
}

// Products returns catalog products matching a direct query
func (s *RecommendationService) Products(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	if _, err := domain.ParseSkinTone(string(query.SkinTone)); err != nil {
		return nil, err
	}
	if query.MaxItems < 0 {
		return nil, fmt.Errorf("%w: max items must not be negative", domain.ErrInvalidRequest)
	}
	return s.catalog.Query(ctx, query)
}

// products looks up the catalog and resolves error records at the boundary
func (s *RecommendationService) products(ctx context.Context, tone domain.SkinTone) ([]domain.Product, error) {
	entries, err := s.catalog.Lookup(ctx, tone)
	if err != nil {
		return nil, err
	}
	return ResolveEntries(entries)
}

// classify resolves the skin tone for a prepared image, consulting the cache first.
// Fallback results are not cached so a later successful run can replace them.
func (s *RecommendationService) classify(ctx context.Context, prepared *domain.PreparedImage) domain.Classification {
	log := logger.FromContext(ctx)
	cacheKey := generateCacheKey(prepared.Hash)

	if cached, ok := s.getFromCache(ctx, cacheKey); ok {
		metrics.ObserveClassification(domain.SourceCache, string(cached), 0)
		return domain.Classification{SkinTone: cached, Source: domain.SourceCache}
	}

	classification := s.classifier.ClassifyTone(ctx, prepared.Image)
	metrics.ObserveClassification(classification.Source, string(classification.SkinTone), classification.Duration)

	if classification.Source != domain.SourceFallback {
		if err := s.setInCache(ctx, cacheKey, classification.SkinTone); err != nil {
			log.Warn("Failed to cache classification", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return classification
}

// generateCacheKey builds the classification cache key.
// Format: "skintone:{perceptual_hash}"
func generateCacheKey(hash string) string {
	return fmt.Sprintf("skintone:%s", hash)
}

// getFromCache returns a cached skin tone; any cache failure counts as a miss
func (s *RecommendationService) getFromCache(ctx context.Context, key string) (domain.SkinTone, bool) {
	if s.cache == nil {
		return "", false
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.FromContext(ctx).Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}

	raw, ok := value.(string)
	if !ok {
		return "", false
	}

	tone, err := domain.ParseSkinTone(raw)
	if err != nil {
		return "", false
	}
	return tone, true
}

// setInCache stores a skin tone in cache
func (s *RecommendationService) setInCache(ctx context.Context, key string, tone domain.SkinTone) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, key, string(tone), s.cacheTTL)
}
