package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/retry"
)

const productPayload = `{
	"request_info": {"success": true},
	"product": {
		"asin": "B08N5WRWNW",
		"title": "Wireless Earbuds X200",
		"buybox_winner": {
			"price": {"value": 59.99, "currency": "USD"},
			"availability": {"type": "in_stock", "raw": "In Stock."}
		},
		"images": [{"link": "https://img.example.com/main.jpg"}]
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	policy := retry.Policy{InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Multiplier: 2.0}
	return NewClient(srv.URL, "test-key", "amazon.com", policy, quota.NewTracker(nil))
}

func TestFetchProductSuccess(t *testing.T) {
	var gotQuery atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Write([]byte(productPayload))
	})

	p, err := c.FetchProduct(context.Background(), "b08n5wrwnw", nil)
	if err != nil {
		t.Fatalf("FetchProduct failed: %v", err)
	}
	if p.Title != "Wireless Earbuds X200" || p.Price != 59.99 {
		t.Errorf("got product %+v", p)
	}

	q, _ := gotQuery.Load().(url.Values)
	if q == nil {
		t.Fatal("handler never ran")
	}
	for key, want := range map[string]string{
		"api_key":       "test-key",
		"type":          "product",
		"asin":          "B08N5WRWNW",
		"amazon_domain": "amazon.com",
	} {
		if got := q[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", key, got, want)
		}
	}
}

func TestFetchProductRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(productPayload))
	})

	var retries []int
	p, err := c.FetchProduct(context.Background(), "B08N5WRWNW", func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	})
	if err != nil {
		t.Fatalf("FetchProduct failed: %v", err)
	}
	if p == nil || p.ASIN != "B08N5WRWNW" {
		t.Errorf("got product %+v", p)
	}
	if calls.Load() != 2 {
		t.Errorf("server handled %d requests, want 2", calls.Load())
	}
	if len(retries) != 1 || retries[0] != 1 {
		t.Errorf("onRetry attempts = %v, want [1]", retries)
	}
}

func TestFetchProductAuthErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "api_key is invalid", http.StatusUnauthorized)
	})

	_, err := c.FetchProduct(context.Background(), "B08N5WRWNW", nil)
	if err == nil {
		t.Fatal("FetchProduct succeeded against a 401 endpoint")
	}
	if calls.Load() != 1 {
		t.Errorf("server handled %d requests, want 1", calls.Load())
	}
	cls := retry.Classify(err)
	if cls.Retryable || cls.Kind != retry.KindAuth {
		t.Errorf("classified %+v, want non-retryable auth", cls)
	}
}

func TestFetchProductRateLimitRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(productPayload))
	})

	_, err := c.FetchProduct(context.Background(), "B08N5WRWNW", nil)
	if err != nil {
		t.Fatalf("FetchProduct failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server handled %d requests, want 2", calls.Load())
	}
}

func TestFetchProductInvalidASIN(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.FetchProduct(context.Background(), "not-an-asin", nil)
	if err == nil {
		t.Fatal("FetchProduct accepted a malformed ASIN")
	}
	if calls.Load() != 0 {
		t.Errorf("server handled %d requests, want 0", calls.Load())
	}
	if cls := retry.Classify(err); cls.Retryable || cls.Kind != retry.KindClient {
		t.Errorf("classified %+v, want non-retryable client", cls)
	}
}
