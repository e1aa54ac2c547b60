package usecase

import (
	"slices"
	"strings"

	"github.com/shadematch/backend/internal/domain"
)

// categoryRule pairs a display category with the name fragments that select it
type categoryRule struct {
	category domain.Category
	keywords []string
}

// categoryRules are checked in order; the first rule with a matching keyword wins.
// Eye comes before Lip so that names containing both resolve to Eye.
var categoryRules = []categoryRule{
	{
		category: domain.CategoryEye,
		keywords: []string{"eyeshadow", "eyeliner", "mascara", "eyebrow"},
	},
	{
		category: domain.CategoryLip,
		keywords: []string{"lipstick", "lip gloss", "lip liner"},
	},
	{
		category: domain.CategoryCheek,
		keywords: []string{"blush", "bronzer", "highlighter"},
	},
	{
		category: domain.CategoryFace,
		keywords: []string{"foundation", "concealer", "powder"},
	},
}

// Categorize returns the display category of a product based on its name.
// Matching is a case-insensitive substring test; names matching no rule,
// including empty names, fall through to Other Products.
func Categorize(product domain.Product) domain.Category {
	name := strings.ToLower(product.Name)
	if name == "" {
		return domain.CategoryOther
	}

	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(name, keyword) {
				return rule.category
			}
		}
	}

	return domain.CategoryOther
}

// ExtractProductType returns the lower-cased first word of the product name
func ExtractProductType(product domain.Product) string {
	words := strings.Fields(product.Name)
	if len(words) == 0 {
		return ""
	}
	return strings.ToLower(words[0])
}

// UniqueBrands returns the sorted set of brands, skipping products without one
func UniqueBrands(products []domain.Product) []string {
	seen := make(map[string]bool)
	brands := []string{}
	for _, product := range products {
		if product.Brand == "" || seen[product.Brand] {
			continue
		}
		seen[product.Brand] = true
		brands = append(brands, product.Brand)
	}
	slices.Sort(brands)
	return brands
}

// UniqueProductTypes returns the sorted set of non-empty product types
func UniqueProductTypes(products []domain.Product) []string {
	seen := make(map[string]bool)
	types := []string{}
	for _, product := range products {
		productType := ExtractProductType(product)
		if productType == "" || seen[productType] {
			continue
		}
		seen[productType] = true
		types = append(types, productType)
	}
	slices.Sort(types)
	return types
}

// ResolveEntries converts raw catalog entries into products.
// The first error record aborts resolution with an *domain.UpstreamError,
// so the engine only ever sees products.
func ResolveEntries(entries []domain.CatalogEntry) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(entries))
	for _, entry := range entries {
		if entry.IsError() {
			return nil, &domain.UpstreamError{Message: entry.Error}
		}
		products = append(products, entry.Product())
	}
	return products, nil
}
