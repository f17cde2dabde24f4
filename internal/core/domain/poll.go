package domain

import "time"

// PollKind selects the evaluation angle of a simulated poll.
type PollKind string

const (
	PollKindMainImage PollKind = "main_image"
	PollKindTitle     PollKind = "title"
	PollKindPrice     PollKind = "price"
	PollKindListing   PollKind = "listing"
)

// ImageBearing reports whether this poll kind embeds product images in the
// prompt.
func (k PollKind) ImageBearing() bool {
	return k == PollKindMainImage || k == PollKindListing
}

// Valid reports whether k is a known poll kind.
func (k PollKind) Valid() bool {
	switch k {
	case PollKindMainImage, PollKindTitle, PollKindPrice, PollKindListing:
		return true
	}
	return false
}

// PollRequest bundles everything one simulated poll needs.
type PollRequest struct {
	Kind        PollKind  `json:"kind"`
	Question    string    `json:"question"`
	Demographic string    `json:"demographic"`
	Products    []Product `json:"products"`
	SampleSize  int       `json:"sample_size,omitempty"`
}

// MatchMethod records how a ranking entry was tied back to its product.
type MatchMethod string

const (
	MatchLabel      MatchMethod = "label"
	MatchExact      MatchMethod = "exact"
	MatchFuzzy      MatchMethod = "fuzzy"
	MatchPositional MatchMethod = "positional"
)

// Ranking is one product's share of simulated respondent preference.
type Ranking struct {
	ASIN       string      `json:"asin"`
	Title      string      `json:"title"`
	Percentage float64     `json:"percentage"`
	Rank       int         `json:"rank"`
	Matched    MatchMethod `json:"match_method"`
}

// PollRun is a completed, persistable poll invocation.
type PollRun struct {
	ID          string    `json:"id"`
	Kind        PollKind  `json:"kind"`
	Question    string    `json:"question"`
	Demographic string    `json:"demographic"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Rankings    []Ranking `json:"rankings"`
	Samples     []string  `json:"sample_responses"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
