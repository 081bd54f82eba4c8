package dto

import (
	"github.com/mrops-br/storefront-api/internal/domain"
)

// ProductQuery holds the listing filters
type ProductQuery struct {
	Category string
	Query    string
	Sort     domain.SortOrder
}

// ProductResponse represents a product in listings
type ProductResponse struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Price       float64       `json:"price"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Image       string        `json:"image"`
	Rating      domain.Rating `json:"rating"`
	Stars       domain.Stars  `json:"stars"`
	Favorited   bool          `json:"favorited"`
}

// ProductDetailResponse is the product detail view
type ProductDetailResponse struct {
	ProductResponse
	DiscountedPrice float64 `json:"discounted_price"`
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *domain.Product, favorites domain.FavoritesSet) *ProductResponse {
	return &ProductResponse{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		Category:    p.Category,
		Image:       p.Image,
		Rating:      p.Rating,
		Stars:       domain.StarsFor(p.Rating.Rate),
		Favorited:   favorites.Has(p.ID),
	}
}

// ToProductResponseList converts a list of domain Products to ProductResponse list
func ToProductResponseList(products []domain.Product, favorites domain.FavoritesSet) []*ProductResponse {
	responses := make([]*ProductResponse, len(products))
	for i := range products {
		responses[i] = ToProductResponse(&products[i], favorites)
	}
	return responses
}

// ToProductDetailResponse converts a domain Product to the detail view
func ToProductDetailResponse(p *domain.Product, favorites domain.FavoritesSet) *ProductDetailResponse {
	return &ProductDetailResponse{
		ProductResponse: *ToProductResponse(p, favorites),
		DiscountedPrice: p.DiscountedPrice(),
	}
}
