package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/pollster/internal/infra/llm"
	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/retry"
)

type scriptedProvider struct {
	responses []string
	calls     int
	lastReq   llm.Request
}

func (p *scriptedProvider) Name() string  { return "mock" }
func (p *scriptedProvider) Model() string { return "test-model" }
func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.lastReq = req
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	return p.responses[i], nil
}

var screenshot = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)

func newTestExtractor(provider llm.Provider) *Extractor {
	policy := retry.Policy{InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Multiplier: 2.0}
	e := NewExtractor(llm.NewClient(provider, policy, quota.NewTracker(nil)))
	e.now = func() time.Time {
		return time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExtractFields(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"price": "$1,177.91", "delivery_date": "in stock", "review_count": "12,873 ratings", "rating": "4.5 out of 5"}`,
	}}
	e := newTestExtractor(provider)

	fields, err := e.Extract(context.Background(), screenshot)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
	if fields.Price != 1177.91 {
		t.Errorf("Price = %v, want 1177.91", fields.Price)
	}
	if fields.DeliveryDays != 3 {
		t.Errorf("DeliveryDays = %d, want 3", fields.DeliveryDays)
	}
	if fields.ReviewCount != 12873 {
		t.Errorf("ReviewCount = %d, want 12873", fields.ReviewCount)
	}
	if fields.Rating != 4.5 {
		t.Errorf("Rating = %v, want 4.5", fields.Rating)
	}
	if len(provider.lastReq.Images) != 1 {
		t.Errorf("request carried %d images, want 1", len(provider.lastReq.Images))
	}
}

func TestExtractDatePhrase(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"price": "$24.99", "delivery_date": "FREE delivery Monday, April 15", "review_count": "310", "rating": "4.1"}`,
	}}
	e := newTestExtractor(provider)

	fields, err := e.Extract(context.Background(), screenshot)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fields.DeliveryDays != 14 {
		t.Errorf("DeliveryDays = %d, want 14", fields.DeliveryDays)
	}
}

func TestExtractPastDateRollsToNextYear(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"price": "$24.99", "delivery_date": "delivery March 30", "review_count": "310", "rating": "4.1"}`,
	}}
	e := newTestExtractor(provider)

	fields, err := e.Extract(context.Background(), screenshot)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fields.DeliveryDays != 363 {
		t.Errorf("DeliveryDays = %d, want 363", fields.DeliveryDays)
	}
}

func TestExtractMissingFieldsDefault(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"price": "", "delivery_date": "no shipping info shown", "review_count": null, "rating": ""}`,
	}}
	e := newTestExtractor(provider)

	fields, err := e.Extract(context.Background(), screenshot)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fields.Price != 0 || fields.ReviewCount != 0 || fields.Rating != 0 {
		t.Errorf("missing fields = %+v, want zeros", fields)
	}
	if fields.DeliveryDays != 5 {
		t.Errorf("DeliveryDays = %d, want default 5", fields.DeliveryDays)
	}
}

func TestExtractToleratesNumericPayload(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"price": 24.99, "delivery_date": "tomorrow", "review_count": 310, "rating": 4.1}`,
	}}
	e := newTestExtractor(provider)

	fields, err := e.Extract(context.Background(), screenshot)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fields.Price != 24.99 || fields.ReviewCount != 310 || fields.Rating != 4.1 {
		t.Errorf("fields = %+v", fields)
	}
	if fields.DeliveryDays != 1 {
		t.Errorf("DeliveryDays = %d, want 1", fields.DeliveryDays)
	}
}

func TestExtractRetriesOutOfRangeRating(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"price": "$24.99", "delivery_date": "in stock", "review_count": "310", "rating": "9.8"}`,
		`{"price": "$24.99", "delivery_date": "in stock", "review_count": "310", "rating": "4.9"}`,
	}}
	e := newTestExtractor(provider)

	fields, err := e.Extract(context.Background(), screenshot)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2 after out-of-range rating", provider.calls)
	}
	if fields.Rating != 4.9 {
		t.Errorf("Rating = %v, want 4.9", fields.Rating)
	}
}

func TestExtractRejectsEmptyScreenshot(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{}`}}
	e := newTestExtractor(provider)

	_, err := e.Extract(context.Background(), nil)
	if err == nil {
		t.Fatal("Extract accepted an empty screenshot")
	}
	if cls := retry.Classify(err); cls.Retryable || cls.Kind != retry.KindClient {
		t.Errorf("classified %+v, want non-retryable client", cls)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", provider.calls)
	}
}
