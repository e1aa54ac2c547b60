package domain

import (
	"fmt"
	"strings"
	"time"
)

// SkinTone is the coarse skin tone bucket that keys the catalog
type SkinTone string

// Skin tones
const (
	SkinToneFair   SkinTone = "fair"
	SkinToneMedium SkinTone = "medium"
	SkinToneDark   SkinTone = "dark"
)

// DefaultSkinTone is used whenever a classifier label cannot be mapped
const DefaultSkinTone = SkinToneMedium

// AllSkinTones lists the closed set of skin tones
var AllSkinTones = []SkinTone{SkinToneFair, SkinToneMedium, SkinToneDark}

// ParseSkinTone validates a skin tone string (case-insensitive)
func ParseSkinTone(s string) (SkinTone, error) {
	tone := SkinTone(strings.ToLower(strings.TrimSpace(s)))
	switch tone {
	case SkinToneFair, SkinToneMedium, SkinToneDark:
		return tone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSkinTone, s)
}

// labelToSkinTone maps classifier vocabulary onto the three catalog tones
var labelToSkinTone = map[string]SkinTone{
	"fair":   SkinToneFair,
	"light":  SkinToneFair,
	"pale":   SkinToneFair,
	"medium": SkinToneMedium,
	"tan":    SkinToneMedium,
	"olive":  SkinToneMedium,
	"dark":   SkinToneDark,
	"deep":   SkinToneDark,
	"rich":   SkinToneDark,
}

// MapLabel maps a raw classifier label to a skin tone. Only the first word
// counts; unknown labels map to DefaultSkinTone.
func MapLabel(label string) SkinTone {
	words := strings.Fields(strings.ToLower(label))
	if len(words) == 0 {
		return DefaultSkinTone
	}
	word := strings.Trim(words[0], ".,!?;:'\"")
	if tone, ok := labelToSkinTone[word]; ok {
		return tone
	}
	return DefaultSkinTone
}

// Classification sources
const (
	SourceCloud    = "cloud"
	SourceLocal    = "local"
	SourceFallback = "fallback"
	SourceCache    = "cache"
)

// Classification is the outcome of skin tone inference for one image
type Classification struct {
	SkinTone SkinTone      `json:"skinTone"`
	Source   string        `json:"source"`
	Label    string        `json:"label,omitempty"`
	Duration time.Duration `json:"-"`
}

// Filter sentinels used by clients for "no filter"
const (
	AllBrandsSentinel   = "All Brands"
	AllProductsSentinel = "All Products"
)

// Per-category limits exposed to clients
const (
	DefaultMaxPerCategory = 3
	MinPerCategory        = 1
	MaxPerCategoryLimit   = 10
)

// FilterOptions is the immutable per-call configuration of the engine.
// Empty Brand or ProductType means no filter.
type FilterOptions struct {
	MaxPerCategory int    `json:"perCategory"`
	Brand          string `json:"brand,omitempty"`
	ProductType    string `json:"productType,omitempty"`
}

// FilterChoices holds the option lists a client offers for filtering
type FilterChoices struct {
	Brands       []string `json:"brands"`
	ProductTypes []string `json:"productTypes"`
}

// Recommendation is the full response of the recommendation pipeline
type Recommendation struct {
	SkinTone       SkinTone      `json:"skinTone"`
	Source         string        `json:"source"`
	ProcessingTime float64       `json:"processingTimeSeconds"`
	Filters        FilterOptions `json:"filters"`
	Choices        FilterChoices `json:"choices"`
	Categories     GroupedResult `json:"categories"`
	Empty          bool          `json:"empty"`
}
