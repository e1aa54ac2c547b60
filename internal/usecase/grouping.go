package usecase

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shadematch/backend/internal/domain"
)

// GroupAndFilter filters products by brand and product type, annotates each
// survivor with its category and groups them by category.
//
// The brand filter is an exact match. The product type filter is a substring
// test against the lower-cased full name, not against ExtractProductType, so
// "lip" also matches "Lip Gloss" and "ip" matches "Lipstick".
//
// Groups are ordered by category label, products within a group by name, and
// each group keeps at most opts.MaxPerCategory products. Categories left
// without products are omitted.
func GroupAndFilter(products []domain.Product, opts domain.FilterOptions) domain.GroupedResult {
	maxPerCategory := opts.MaxPerCategory
	if maxPerCategory < domain.MinPerCategory {
		maxPerCategory = domain.DefaultMaxPerCategory
	}

	filtered := make([]domain.CategorizedProduct, 0, len(products))
	for _, product := range products {
		if opts.Brand != "" && product.Brand != opts.Brand {
			continue
		}
		if opts.ProductType != "" && !strings.Contains(strings.ToLower(product.Name), opts.ProductType) {
			continue
		}
		filtered = append(filtered, domain.CategorizedProduct{
			Product:  product,
			Category: Categorize(product),
		})
	}

	slices.SortStableFunc(filtered, func(a, b domain.CategorizedProduct) int {
		return cmp.Or(
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(a.Name, b.Name),
		)
	})

	grouped := domain.GroupedResult{}
	for start := 0; start < len(filtered); {
		category := filtered[start].Category
		end := start
		for end < len(filtered) && filtered[end].Category == category {
			end++
		}

		run := filtered[start:end]
		if len(run) > maxPerCategory {
			run = run[:maxPerCategory]
		}
		grouped = append(grouped, domain.CategoryGroup{
			Category: category,
			Products: slices.Clone(run),
		})

		start = end
	}

	return grouped
}

// NewFilterOptions builds engine options from raw client selections.
// The "All Brands" and "All Products" sentinels and blank values mean no filter.
// perCategory of 0 selects the default; other values are clamped to the allowed range.
// The product type is lower-cased here because GroupAndFilter only lower-cases
// the name; a raw mixed-case type such as "Lip" would otherwise never match.
func NewFilterOptions(brand, productType string, perCategory int) domain.FilterOptions {
	brand = strings.TrimSpace(brand)
	if brand == domain.AllBrandsSentinel {
		brand = ""
	}

	productType = strings.TrimSpace(productType)
	if productType == domain.AllProductsSentinel {
		productType = ""
	}

	switch {
	case perCategory == 0:
		perCategory = domain.DefaultMaxPerCategory
	case perCategory < domain.MinPerCategory:
		perCategory = domain.MinPerCategory
	case perCategory > domain.MaxPerCategoryLimit:
		perCategory = domain.MaxPerCategoryLimit
	}

	return domain.FilterOptions{
		MaxPerCategory: perCategory,
		Brand:          brand,
		ProductType:    strings.ToLower(productType),
	}
}

// WithChoiceSentinels prepends the "all" sentinels to the option lists
func WithChoiceSentinels(choices domain.FilterChoices) domain.FilterChoices {
	return domain.FilterChoices{
		Brands:       append([]string{domain.AllBrandsSentinel}, choices.Brands...),
		ProductTypes: append([]string{domain.AllProductsSentinel}, choices.ProductTypes...),
	}
}
