package domain

// Product is a single catalog product. Missing fields are empty strings.
type Product struct {
	Name  string `json:"name" yaml:"name"`
	Brand string `json:"brand" yaml:"brand"`
	Color string `json:"color" yaml:"color"`
}

// CatalogEntry is a raw catalog record. A non-empty Error marks the record
// as an upstream failure rather than a product.
type CatalogEntry struct {
	Name  string `json:"name,omitempty" yaml:"name"`
	Brand string `json:"brand,omitempty" yaml:"brand"`
	Color string `json:"color,omitempty" yaml:"color"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// IsError reports whether the entry is an error record
func (e CatalogEntry) IsError() bool {
	return e.Error != ""
}

// Product returns the product fields of the entry
func (e CatalogEntry) Product() Product {
	return Product{Name: e.Name, Brand: e.Brand, Color: e.Color}
}

// Category is a display category derived from a product name
type Category string

// Display categories
const (
	CategoryFace  Category = "Face Products"
	CategoryCheek Category = "Cheek Products"
	CategoryLip   Category = "Lip Products"
	CategoryEye   Category = "Eye Products"
	CategoryOther Category = "Other Products"
)

// AllCategories lists every display category in label order
var AllCategories = []Category{
	CategoryCheek,
	CategoryEye,
	CategoryFace,
	CategoryLip,
	CategoryOther,
}

// CategorizedProduct is a copy of a Product annotated with its category
type CategorizedProduct struct {
	Product
	Category Category `json:"category"`
}

// CategoryGroup holds the capped, name-ordered products of one category
type CategoryGroup struct {
	Category Category             `json:"category"`
	Products []CategorizedProduct `json:"products"`
}

// GroupedResult is the engine output, ordered by category label.
// Categories without products are absent.
type GroupedResult []CategoryGroup

// Get returns the products of a category, or nil when the category is absent
func (g GroupedResult) Get(category Category) []CategorizedProduct {
	for _, group := range g {
		if group.Category == category {
			return group.Products
		}
	}
	return nil
}

// Categories returns the category labels present in the result
func (g GroupedResult) Categories() []Category {
	categories := make([]Category, 0, len(g))
	for _, group := range g {
		categories = append(categories, group.Category)
	}
	return categories
}

// Count returns the total number of products across all categories
func (g GroupedResult) Count() int {
	total := 0
	for _, group := range g {
		total += len(group.Products)
	}
	return total
}

// ProductQuery selects products for one skin tone straight from the catalog
type ProductQuery struct {
	SkinTone SkinTone
	Category string // substring of the product name, case-insensitive
	Brand    string // exact brand
	MaxItems int    // 0 = no limit
}
