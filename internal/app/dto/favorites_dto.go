package dto

// FavoritesResponse is the favorites page: the set plus the matching catalog products
type FavoritesResponse struct {
	Count    int                `json:"count"`
	IDs      []int              `json:"ids"`
	Products []*ProductResponse `json:"products"`
}

// ToggleResponse reports the outcome of a favorite toggle
type ToggleResponse struct {
	ProductID int  `json:"product_id"`
	Favorited bool `json:"favorited"`
	Count     int  `json:"count"`
}

// CountResponse carries the favorites counter
type CountResponse struct {
	Count int `json:"count"`
}
