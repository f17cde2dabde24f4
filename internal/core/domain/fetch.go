package domain

import "time"

// ItemStatus buckets one bulk-fetch item's outcome.
type ItemStatus string

const (
	ItemStatusSuccess     ItemStatus = "success"
	ItemStatusNeedsReview ItemStatus = "needs_review"
	ItemStatusFailed      ItemStatus = "failed"
)

// ItemResult is one ASIN's outcome inside a bulk fetch.
type ItemResult struct {
	ASIN     string     `json:"asin"`
	Status   ItemStatus `json:"status"`
	Product  *Product   `json:"product,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// BulkFetchResult aggregates a whole bulk fetch, preserving input order.
type BulkFetchResult struct {
	ID               string       `json:"id"`
	Results          []ItemResult `json:"results"`
	SuccessCount     int          `json:"success_count"`
	FailedCount      int          `json:"failed_count"`
	NeedsReviewCount int          `json:"needs_review_count"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      time.Time    `json:"completed_at"`
}

// Add appends one item outcome and bumps the matching counter.
func (r *BulkFetchResult) Add(item ItemResult) {
	r.Results = append(r.Results, item)
	switch item.Status {
	case ItemStatusSuccess:
		r.SuccessCount++
	case ItemStatusNeedsReview:
		r.NeedsReviewCount++
	case ItemStatusFailed:
		r.FailedCount++
	}
}
