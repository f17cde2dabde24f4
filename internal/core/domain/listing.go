package domain

// ListingFields are the four values read off a single listing screenshot.
type ListingFields struct {
	Price        float64 `json:"price"`
	DeliveryDays int     `json:"delivery_days"`
	ReviewCount  int     `json:"review_count"`
	Rating       float64 `json:"rating"`
}
