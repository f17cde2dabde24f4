package domain

import "time"

// Product is a normalized competitor listing, fetched from the scraping
// API or entered manually.
type Product struct {
	ASIN         string    `json:"asin"`
	Marketplace  string    `json:"marketplace"`
	Title        string    `json:"title"`
	Brand        string    `json:"brand,omitempty"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency,omitempty"`
	Rating       float64   `json:"rating"`
	ReviewCount  int       `json:"review_count"`
	DeliveryDays int       `json:"delivery_days"`
	InStock      bool      `json:"in_stock"`
	ImageURLs    []string  `json:"image_urls,omitempty"`
	Features     []string  `json:"features,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Label returns the display name used when presenting the product to a
// respondent panel. Falls back to the ASIN for untitled listings.
func (p Product) Label() string {
	if p.Title != "" {
		return p.Title
	}
	return p.ASIN
}
