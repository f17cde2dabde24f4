package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/extraction"
	"github.com/vietddude/pollster/internal/fetching"
	"github.com/vietddude/pollster/internal/health"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/llm"
	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/infra/scraper"
	"github.com/vietddude/pollster/internal/infra/storage/memory"
	"github.com/vietddude/pollster/internal/polling"
	"github.com/vietddude/pollster/internal/retry"
)

var pngBytes = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)

type stubProvider struct {
	reply string
	err   error
	calls atomic.Int32
}

func (p *stubProvider) Name() string  { return "stub" }
func (p *stubProvider) Model() string { return "test-model" }

func (p *stubProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

// newTestServer wires the whole stack onto in-memory storage and returns
// the API behind an httptest listener.
func newTestServer(t *testing.T, p llm.Provider, scrapeURL string) *httptest.Server {
	t.Helper()

	policy := retry.Policy{InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Multiplier: 2.0}
	tracker := quota.NewTracker(nil)
	client := llm.NewClient(p, policy, tracker)

	store := memory.NewMemoryStorage()
	products := memory.NewProductRepo(store)
	runs := memory.NewPollRunRepo(store)
	imgs := images.NewFetcher(5 * time.Second)
	sc := scraper.NewClient(scrapeURL, "scrape-key", "amazon.com", policy, tracker)

	srv := NewServer(0, time.Minute, Deps{
		Polls:     polling.NewSimulator(client, imgs, runs, polling.Config{}),
		Extractor: extraction.NewExtractor(client),
		Fetcher:   fetching.NewFetcher(sc, imgs, nil, products, fetching.Config{ItemDelay: time.Millisecond}),
		Images:    imgs,
		Products:  products,
		Runs:      runs,
		Monitor:   health.NewMonitor(health.Credentials{LLMKeyLen: 40, ScraperKeyLen: 32}, nil, nil, tracker, nil),
	})

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

const pollReply = `{
	"rankings": [
		{"product": "Product 1", "percentage": 40},
		{"product": "Product 2", "percentage": 35},
		{"product": "Product 3", "percentage": 25}
	],
	"sample_responses": ["r1", "r2", "r3", "r4", "r5"]
}`

const pollRequestBody = `{
	"kind": "title",
	"question": "Which keyboard would you buy?",
	"products": [
		{"asin": "B00000000A", "title": "Alpha Keyboard", "price": 49.99},
		{"asin": "B00000000B", "title": "Beta Keyboard", "price": 59.99},
		{"asin": "B00000000C", "title": "Gamma Keyboard", "price": 39.99}
	]
}`

func TestPollLifecycle(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: pollReply}, "")

	resp := postJSON(t, ts.URL+"/api/v1/polls", pollRequestBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create poll status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var run domain.PollRun
	decodeJSON(t, resp, &run)

	if run.ID == "" {
		t.Fatal("poll run has no ID")
	}
	if len(run.Rankings) != 3 {
		t.Fatalf("got %d rankings, want 3", len(run.Rankings))
	}
	if run.Rankings[0].Rank != 1 || run.Rankings[0].Percentage != 40 {
		t.Errorf("top ranking = %+v, want rank 1 at 40%%", run.Rankings[0])
	}
	if len(run.Samples) != 5 {
		t.Errorf("got %d samples, want 5", len(run.Samples))
	}

	resp, err := http.Get(ts.URL + "/api/v1/polls/" + run.ID)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get poll status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var fetched domain.PollRun
	decodeJSON(t, resp, &fetched)
	if fetched.ID != run.ID {
		t.Errorf("fetched run ID = %q, want %q", fetched.ID, run.ID)
	}

	resp, err = http.Get(ts.URL + "/api/v1/polls/recent")
	if err != nil {
		t.Fatalf("get recent polls: %v", err)
	}
	var recent []domain.PollRun
	decodeJSON(t, resp, &recent)
	if len(recent) != 1 {
		t.Errorf("got %d recent runs, want 1", len(recent))
	}
}

func TestCreatePollRejectsBadBody(t *testing.T) {
	ts := newTestServer(t, &stubProvider{reply: pollReply}, "")

	resp := postJSON(t, ts.URL+"/api/v1/polls", `{"kind": `)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var envelope errorResponse
	decodeJSON(t, resp, &envelope)
	if envelope.Error != "invalid request body" {
		t.Errorf("error = %q, want %q", envelope.Error, "invalid request body")
	}
}

func TestCreatePollRejectsUnknownKind(t *testing.T) {
	p := &stubProvider{reply: pollReply}
	ts := newTestServer(t, p, "")

	body := strings.Replace(pollRequestBody, `"title"`, `"flavor"`, 1)
	resp := postJSON(t, ts.URL+"/api/v1/polls", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var envelope errorResponse
	decodeJSON(t, resp, &envelope)
	if !strings.Contains(envelope.Error, "invalid input") {
		t.Errorf("error = %q, want an invalid input message", envelope.Error)
	}
	if p.calls.Load() != 0 {
		t.Errorf("provider called %d times for a rejected request", p.calls.Load())
	}
}

func TestCreatePollAuthFailure(t *testing.T) {
	p := &stubProvider{err: &retry.HTTPError{Service: "anthropic", StatusCode: 401, Body: "invalid x-api-key"}}
	ts := newTestServer(t, p, "")

	resp := postJSON(t, ts.URL+"/api/v1/polls", pollRequestBody)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	var envelope errorResponse
	decodeJSON(t, resp, &envelope)
	if !strings.Contains(envelope.Error, "credential configuration") {
		t.Errorf("error = %q, want a credential configuration hint", envelope.Error)
	}
	if p.calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1 (auth errors must not retry)", p.calls.Load())
	}
}

func TestExtractFromBase64(t *testing.T) {
	reply := `{"price": "$1,177.91", "delivery_date": "in stock", "review_count": "12,873 ratings", "rating": "4.5"}`
	ts := newTestServer(t, &stubProvider{reply: reply}, "")

	body := fmt.Sprintf(`{"image_base64": %q}`, base64.StdEncoding.EncodeToString(pngBytes))
	resp := postJSON(t, ts.URL+"/api/v1/extract", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var fields domain.ListingFields
	decodeJSON(t, resp, &fields)

	if fields.Price != 1177.91 {
		t.Errorf("price = %v, want 1177.91", fields.Price)
	}
	if fields.DeliveryDays != 3 {
		t.Errorf("delivery days = %d, want 3", fields.DeliveryDays)
	}
	if fields.ReviewCount != 12873 {
		t.Errorf("review count = %d, want 12873", fields.ReviewCount)
	}
	if fields.Rating != 4.5 {
		t.Errorf("rating = %v, want 4.5", fields.Rating)
	}
}

func TestExtractRequiresImage(t *testing.T) {
	ts := newTestServer(t, &stubProvider{}, "")

	resp := postJSON(t, ts.URL+"/api/v1/extract", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var envelope errorResponse
	decodeJSON(t, resp, &envelope)
	if envelope.Error != "image_base64 or image_url is required" {
		t.Errorf("error = %q", envelope.Error)
	}
}

func TestExtractRejectsBadBase64(t *testing.T) {
	ts := newTestServer(t, &stubProvider{}, "")

	resp := postJSON(t, ts.URL+"/api/v1/extract", `{"image_base64": "not-base64!!!"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()
}

func TestBulkFetchAndProductLookup(t *testing.T) {
	var scrape *httptest.Server
	scrape = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			w.Write(pngBytes)
			return
		}
		asin := r.URL.Query().Get("asin")
		fmt.Fprintf(w, `{
			"request_info": {"success": true},
			"product": {
				"asin": %q,
				"title": "Listing %s",
				"buybox_winner": {
					"price": {"value": 19.99, "currency": "USD"},
					"availability": {"type": "in_stock", "raw": "In Stock."}
				},
				"images": [{"link": %q}]
			}
		}`, asin, asin, scrape.URL+"/img/"+asin+".jpg")
	}))
	defer scrape.Close()

	ts := newTestServer(t, &stubProvider{}, scrape.URL)

	resp := postJSON(t, ts.URL+"/api/v1/products/fetch", `{"asins": ["B00000000A", "B00000000B"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var result domain.BulkFetchResult
	decodeJSON(t, resp, &result)

	if result.SuccessCount != 2 || result.FailedCount != 0 {
		t.Fatalf("success = %d, failed = %d, want 2 and 0", result.SuccessCount, result.FailedCount)
	}
	if len(result.Results) != 2 || result.Results[0].ASIN != "B00000000A" {
		t.Fatalf("results = %+v, want input order preserved", result.Results)
	}

	resp, err := http.Get(ts.URL + "/api/v1/products/B00000000A")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get product status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var product domain.Product
	decodeJSON(t, resp, &product)
	if product.Title != "Listing B00000000A" {
		t.Errorf("title = %q, want the fetched listing", product.Title)
	}
}

func TestNotFoundEnvelopes(t *testing.T) {
	ts := newTestServer(t, &stubProvider{}, "")

	for _, path := range []string{"/api/v1/polls/nope", "/api/v1/products/B0MISSING00"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusNotFound)
		}
		var envelope errorResponse
		decodeJSON(t, resp, &envelope)
		if envelope.Error == "" {
			t.Errorf("GET %s returned an empty error envelope", path)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubProvider{}, "")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var brief map[string]string
	decodeJSON(t, resp, &brief)
	if brief["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", brief["status"])
	}

	resp, err = http.Get(ts.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("get detailed health: %v", err)
	}
	var report health.Report
	decodeJSON(t, resp, &report)
	if report.SystemStatus != health.StatusHealthy {
		t.Errorf("system status = %q, want healthy", report.SystemStatus)
	}
	if _, ok := report.Components["llm_credentials"]; !ok {
		t.Error("detailed report is missing the llm_credentials component")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubProvider{}, "")

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	if !bytes.Contains(body, []byte("pollster_")) {
		t.Error("metrics exposition has no pollster_ series")
	}
}
