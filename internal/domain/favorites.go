package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// FavoritesSet maps a product id to its presence in the wishlist.
// Only true entries are kept, so len(set) is the number of favorites.
type FavoritesSet map[int]bool

// NewFavoritesSet builds a set holding the given ids
func NewFavoritesSet(ids ...int) FavoritesSet {
	set := make(FavoritesSet, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Has reports whether id is favorited
func (s FavoritesSet) Has(id int) bool {
	return s[id]
}

// Count returns the number of favorited products
func (s FavoritesSet) Count() int {
	return len(s)
}

// IDs returns the favorited ids in ascending order
func (s FavoritesSet) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Toggle returns a copy of s with id removed if present, or added otherwise.
// s itself is left untouched.
func (s FavoritesSet) Toggle(id int) FavoritesSet {
	next := maps.Clone(s)
	if next == nil {
		next = make(FavoritesSet, 1)
	}
	if next[id] {
		delete(next, id)
	} else {
		next[id] = true
	}
	return next
}

// Encode serializes the set as a JSON object keyed by product id
func (s FavoritesSet) Encode() (string, error) {
	if s == nil {
		s = FavoritesSet{}
	}
	data, err := json.Marshal(map[int]bool(s))
	if err != nil {
		return "", fmt.Errorf("failed to encode favorites: %w", err)
	}
	return string(data), nil
}

// DecodeFavorites parses a persisted favorites value. False entries are dropped.
func DecodeFavorites(raw string) (FavoritesSet, error) {
	var decoded map[int]bool
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupted, err)
	}

	set := make(FavoritesSet, len(decoded))
	for id, present := range decoded {
		if present {
			set[id] = true
		}
	}
	return set, nil
}
