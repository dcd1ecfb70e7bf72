package domain

import (
	"time"
)

// Listing categories.
const (
	CategoryElectronics = "electronics"
	CategoryClothing    = "clothing"
	CategoryAccessories = "accessories"
)

// MaxOtherImages bounds the secondary image sequence of a listing.
const MaxOtherImages = 5

// MaxPrice is the largest price a NUMERIC(12,2) column holds.
const MaxPrice = 9999999999.99

// Option is a free-form key/value attribute of a listing, such as size or color.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Listing is an item offered for sale by an account.
type Listing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"userId"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	MainImage   string    `json:"mainImage"`
	OtherImages []string  `json:"otherImages"`
	Options     []Option  `json:"options"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ValidCategories returns the closed set of listing categories.
func ValidCategories() []string {
	return []string{CategoryElectronics, CategoryClothing, CategoryAccessories}
}

// IsValidCategory checks whether category is one of ValidCategories.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// ListingPage is one page of the public listing feed.
type ListingPage struct {
	Products      []Listing `json:"products"`
	TotalProducts int       `json:"totalProducts"`
	TotalPages    int       `json:"totalPages"`
	CurrentPage   int       `json:"currentPage"`
}
