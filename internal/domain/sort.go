package domain

import (
	"fmt"
	"slices"
	"strings"
)

// SortOrder controls the price ordering of a product listing
type SortOrder string

const (
	SortNone      SortOrder = ""
	SortPriceAsc  SortOrder = "asc"  // Price: Low to High
	SortPriceDesc SortOrder = "desc" // Price: High to Low
)

// ParseSortOrder validates a sort query value
func ParseSortOrder(value string) (SortOrder, error) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(value))); order {
	case SortNone, SortPriceAsc, SortPriceDesc:
		return order, nil
	default:
		return SortNone, fmt.Errorf("%w: %q", ErrInvalidSortOrder, value)
	}
}

// Apply sorts products in place by price. Equal prices keep catalog order.
func (o SortOrder) Apply(products []Product) {
	switch o {
	case SortPriceAsc:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmpPrice(a.Price, b.Price)
		})
	case SortPriceDesc:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmpPrice(b.Price, a.Price)
		})
	}
}

func cmpPrice(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
