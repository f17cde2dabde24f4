// Package scraper fetches competitor listings from the product scraping
// API and normalizes its loosely typed payload into domain products.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/metrics"
	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/retry"
)

const serviceName = "scraper"

var asinRe = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// Client calls the scraping API with retry, quota tracking and metrics.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	marketplace string
	policy      retry.Policy
	quota       *quota.Tracker
	log         *slog.Logger
}

// NewClient creates a scraping client. baseURL carries no trailing
// slash; marketplace is the Amazon domain passed through to the API.
func NewClient(baseURL, apiKey, marketplace string, policy retry.Policy, tracker *quota.Tracker) *Client {
	return &Client{
		http:        &http.Client{Timeout: 2 * time.Minute},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		marketplace: marketplace,
		policy:      policy,
		quota:       tracker,
		log:         slog.Default().With("component", "scraper"),
	}
}

// FetchProduct retrieves one listing by ASIN. Transport failures and
// garbled payloads are retried under the client's policy; a malformed
// ASIN or an API rejection naming the product fails immediately.
func (c *Client) FetchProduct(ctx context.Context, asin string, onRetry retry.Observer) (*domain.Product, error) {
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if !asinRe.MatchString(asin) {
		return nil, retry.Terminal(fmt.Sprintf("invalid input: %q is not a valid ASIN", asin), nil)
	}

	start := time.Now()
	product, err := retry.Do(ctx, c.policy, c.observe(asin, onRetry), func(ctx context.Context) (*domain.Product, error) {
		c.quota.RecordCall(serviceName, "fetch_product")
		body, err := c.get(ctx, asin)
		if err != nil {
			return nil, err
		}
		return decodeProduct(body, asin, c.marketplace, time.Now())
	})

	c.record(start, err)
	return product, err
}

func (c *Client) get(ctx context.Context, asin string) ([]byte, error) {
	u, err := url.Parse(c.baseURL + "/request")
	if err != nil {
		return nil, retry.Terminal(fmt.Sprintf("invalid input: bad scraper base URL %q", c.baseURL), err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("type", "product")
	q.Set("asin", asin)
	q.Set("amazon_domain", c.marketplace)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build scraper request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries the API key in its query; keep it out
		// of error messages and logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = c.baseURL + "/request"
		}
		return nil, fmt.Errorf("scraper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read scraper response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) observe(asin string, onRetry retry.Observer) retry.Observer {
	return func(attempt int, err error, delay time.Duration) {
		cls := retry.Classify(err)
		metrics.RetriesTotal.WithLabelValues(serviceName, string(cls.Kind)).Inc()
		c.log.Warn("Retrying product fetch",
			"asin", asin,
			"attempt", attempt,
			"kind", cls.Kind,
			"delay", delay,
			"error", err,
		)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
}

func (c *Client) record(start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ExternalCallsTotal.WithLabelValues(serviceName, "fetch_product", outcome).Inc()
	metrics.ExternalCallLatency.WithLabelValues(serviceName, "fetch_product").Observe(time.Since(start).Seconds())
}
