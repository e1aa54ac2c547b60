package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shadematch/backend/internal/domain"
)

//go:embed products.yaml
var embeddedProducts []byte

// StaticCatalog is a read-only, in-memory product table keyed by skin tone
type StaticCatalog struct {
	entries map[domain.SkinTone][]domain.CatalogEntry
}

// NewStaticCatalog creates a catalog from the embedded product table
func NewStaticCatalog() (*StaticCatalog, error) {
	return Parse(embeddedProducts)
}

// LoadFile creates a catalog from a YAML file in the embedded table's format
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML: a mapping from skin tone to a list of
// {name, brand, color} records. Unknown skin tones are rejected.
func Parse(data []byte) (*StaticCatalog, error) {
	var raw map[string][]domain.CatalogEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	entries := make(map[domain.SkinTone][]domain.CatalogEntry, len(raw))
	for key, list := range raw {
		tone, err := domain.ParseSkinTone(key)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		entries[tone] = list
	}

	return &StaticCatalog{entries: entries}, nil
}

// Lookup returns a copy of the ordered entries for a skin tone
func (c *StaticCatalog) Lookup(ctx context.Context, tone domain.SkinTone) ([]domain.CatalogEntry, error) {
	entries, ok := c.entries[tone]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSkinTone, tone)
	}
	return slices.Clone(entries), nil
}

// Query returns products for a skin tone, optionally narrowed by a
// case-insensitive name fragment and an exact brand, and limited to MaxItems.
// An unknown skin tone yields an empty list. Error records are skipped.
func (c *StaticCatalog) Query(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	products := []domain.Product{}

	entries, ok := c.entries[query.SkinTone]
	if !ok {
		return products, nil
	}

	category := strings.ToLower(query.Category)
	for _, entry := range entries {
		if entry.IsError() {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(entry.Name), category) {
			continue
		}
		if query.Brand != "" && entry.Brand != query.Brand {
			continue
		}
		products = append(products, entry.Product())
	}

	if query.MaxItems > 0 && len(products) > query.MaxItems {
		products = products[:query.MaxItems]
	}

	return products, nil
}

// SkinTones returns the tones present in the catalog
func (c *StaticCatalog) SkinTones() []domain.SkinTone {
	tones := make([]domain.SkinTone, 0, len(c.entries))
	for _, tone := range domain.AllSkinTones {
		if _, ok := c.entries[tone]; ok {
			tones = append(tones, tone)
		}
	}
	return tones
}
