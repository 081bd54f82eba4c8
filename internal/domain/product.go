package domain

import (
	"math"
	"strings"
)

// Rating is the aggregated customer rating of a product
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product represents a catalog product, owned by the external catalog service
type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

// DetailDiscount is the fraction taken off the price on the product detail view
const DetailDiscount = 0.2

// DiscountedPrice returns the price with DetailDiscount applied, rounded to cents
func (p *Product) DiscountedPrice() float64 {
	return math.Round(p.Price*(1-DetailDiscount)*100) / 100
}

// Matches reports whether query occurs in the title or description, ignoring case.
// A blank query matches every product.
func (p *Product) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}

// Stars splits a 0-5 rating into the full, half and empty stars shown next to a product
type Stars struct {
	Full  int `json:"full"`
	Half  int `json:"half"`
	Empty int `json:"empty"`
}

// StarsFor computes the star breakdown for a rating rate
func StarsFor(rate float64) Stars {
	rate = math.Max(0, math.Min(5, rate))

	s := Stars{
		Full:  int(math.Floor(rate)),
		Empty: 5 - int(math.Ceil(rate)),
	}
	if rate != math.Floor(rate) {
		s.Half = 1
	}
	return s
}

// Categories returns the distinct categories of products in first-appearance order
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	categories := make([]string, 0)
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}
