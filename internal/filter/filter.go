// Package filter translates structured filter requests into predicate
// fragments shared by the plain filter search and the similarity-ranked
// filter search.
package filter

import (
	"strings"

	"github.com/hyeonso/bagseek/internal/models"
)

const (
	// DefaultMinPrice and DefaultMaxPrice are the UI's declared slider
	// bounds. A bound equal to its default is a no-op and is not emitted,
	// so the query layer never evaluates it.
	DefaultMinPrice = 4900
	DefaultMaxPrice = 1500000

	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Filter is one composed filter request.
type Filter struct {
	Categories []string
	Colors     []string
	MinPrice   float64
	MaxPrice   float64
}

// New builds a Filter, treating zero prices as the declared defaults.
func New(categories, colors []string, minPrice, maxPrice float64) Filter {
	if minPrice == 0 {
		minPrice = DefaultMinPrice
	}
	if maxPrice == 0 {
		maxPrice = DefaultMaxPrice
	}
	return Filter{
		Categories: categories,
		Colors:     colors,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
	}
}

// PriceBounds returns the inclusive price bounds to apply. A nil bound
// means the caller left it at the default and no constraint is emitted.
func (f Filter) PriceBounds() (min, max *float64) {
	if f.MinPrice > DefaultMinPrice {
		v := f.MinPrice
		min = &v
	}
	if f.MaxPrice > 0 && f.MaxPrice < DefaultMaxPrice {
		v := f.MaxPrice
		max = &v
	}
	return min, max
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	min, max := f.PriceBounds()
	return len(f.Categories) == 0 && len(f.Colors) == 0 && min == nil && max == nil
}

// Matches evaluates the filter against one catalog item: exact match on
// category, case-insensitive substring match OR-combined across colors,
// inclusive price bounds when emitted.
func (f Filter) Matches(b models.Bag) bool {
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if b.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Colors) > 0 {
		itemColor := strings.ToLower(b.Color)
		found := false
		for _, c := range f.Colors {
			if strings.Contains(itemColor, strings.ToLower(c)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	min, max := f.PriceBounds()
	if min != nil && b.Price < *min {
		return false
	}
	if max != nil && b.Price > *max {
		return false
	}

	return true
}

// NormalizePage clamps a page number to at least 1.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizeLimit clamps a page size into [1, MaxPageSize], defaulting to
// DefaultPageSize when unset.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// TotalPages reports ceil(total / limit).
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
