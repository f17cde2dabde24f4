// Package extraction pulls the four headline listing fields out of a
// screenshot through a vision completion call: price, delivery date,
// review count and rating. The model reports what it sees verbatim;
// all numeric interpretation happens here.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/core/parse"
	"github.com/vietddude/pollster/internal/infra/llm"
	"github.com/vietddude/pollster/internal/infra/metrics"
	"github.com/vietddude/pollster/internal/retry"
)

const (
	maxPrice       = 1_000_000
	maxDeliveryDay = 365
	maxReviewCount = 50_000_000
	maxRating      = 5
)

const systemPrompt = "You read e-commerce listing screenshots. Report exactly what is " +
	"displayed, as strings, in strictly valid JSON with no prose around the object."

const fieldPrompt = `Extract these four fields from the attached listing screenshot:
{"price": "...", "delivery_date": "...", "review_count": "...", "rating": "..."}
Copy the displayed text verbatim (for example "$1,177.91", "FREE delivery Monday, April 15",
"12,873 ratings", "4.5 out of 5"). Use "" for anything not visible.`

// Extractor runs screenshot extractions. Safe for concurrent use.
type Extractor struct {
	llm *llm.Client
	log *slog.Logger
	now func() time.Time
}

func NewExtractor(client *llm.Client) *Extractor {
	return &Extractor{
		llm: client,
		log: slog.Default().With("component", "extraction"),
		now: time.Now,
	}
}

// extractResponse tolerates models answering with bare numbers where
// strings were asked for.
type extractResponse struct {
	Price        looseString `json:"price"`
	DeliveryDate looseString `json:"delivery_date"`
	ReviewCount  looseString `json:"review_count"`
	Rating       looseString `json:"rating"`
}

type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*s = looseString(num.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", b)
}

// Extract reads one screenshot. Field conversion and range validation
// run inside the retried call, so a hallucinated out-of-range value
// triggers a fresh attempt rather than reaching the caller.
func (e *Extractor) Extract(ctx context.Context, screenshot []byte) (*domain.ListingFields, error) {
	if len(screenshot) == 0 {
		return nil, retry.Terminal("invalid input: empty screenshot", nil)
	}

	req := llm.Request{
		System: systemPrompt,
		Prompt: fieldPrompt,
		Images: []llm.Image{{Data: screenshot, Label: "Listing screenshot"}},
	}

	check := func(r *extractResponse) error {
		_, err := e.convert(r)
		return err
	}
	resp, err := llm.CompleteJSON(ctx, e.llm, "extract_fields", req, nil, check)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	fields, err := e.convert(&resp)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ExtractionsTotal.WithLabelValues("success").Inc()
	e.log.Info("Screenshot extracted",
		"price", fields.Price,
		"delivery_days", fields.DeliveryDays,
		"review_count", fields.ReviewCount,
		"rating", fields.Rating,
	)
	return fields, nil
}

// convert turns the verbatim screen text into numbers and rejects
// anything outside the ranges a real listing can show.
func (e *Extractor) convert(r *extractResponse) (*domain.ListingFields, error) {
	f := &domain.ListingFields{
		Price:        parse.Price(string(r.Price)),
		DeliveryDays: parse.ShippingDays(string(r.DeliveryDate), e.now()),
		ReviewCount:  parse.Count(string(r.ReviewCount)),
		Rating:       parse.Price(string(r.Rating)),
	}

	if f.Price > maxPrice {
		return nil, fmt.Errorf("price %.2f outside 0..%d", f.Price, maxPrice)
	}
	if f.DeliveryDays < 0 || f.DeliveryDays > maxDeliveryDay {
		return nil, fmt.Errorf("delivery days %d outside 0..%d", f.DeliveryDays, maxDeliveryDay)
	}
	if f.ReviewCount > maxReviewCount {
		return nil, fmt.Errorf("review count %d outside 0..%d", f.ReviewCount, maxReviewCount)
	}
	if f.Rating > maxRating {
		return nil, fmt.Errorf("rating %.1f outside 0..%d", f.Rating, maxRating)
	}
	return f, nil
}
