package polling

import (
	"fmt"
	"math"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/retry"
)

// sumTolerance absorbs floating-point drift in a distribution that a
// model rounded to one or two decimals.
const sumTolerance = 0.1

func validateRequest(req *domain.PollRequest, defaultSamples int) error {
	if !req.Kind.Valid() {
		return retry.Terminal(fmt.Sprintf("invalid input: unknown poll kind %q", req.Kind), nil)
	}
	if req.Question == "" {
		return retry.Terminal("invalid input: poll question is empty", nil)
	}
	if len(req.Products) < 2 {
		return retry.Terminal(fmt.Sprintf("invalid input: a poll needs at least 2 products, got %d", len(req.Products)), nil)
	}
	if req.SampleSize <= 0 {
		req.SampleSize = defaultSamples
	}
	return nil
}

// validateDistribution rejects distributions no real panel could
// produce: a wrong entry count, any zero or negative share, or
// percentages that do not sum to 100 within tolerance.
func validateDistribution(parsed []rankingEntry, productCount int) error {
	if len(parsed) != productCount {
		return fmt.Errorf("got %d ranking entries for %d products", len(parsed), productCount)
	}
	var sum float64
	for _, e := range parsed {
		if e.Percentage <= 0 {
			return fmt.Errorf("product %q received a zero share", e.Product)
		}
		sum += e.Percentage
	}
	if math.Abs(sum-100) > sumTolerance {
		return fmt.Errorf("percentages sum to %.2f, want 100", sum)
	}
	return nil
}
