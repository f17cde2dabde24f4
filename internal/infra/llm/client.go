package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/pollster/internal/infra/metrics"
	"github.com/vietddude/pollster/internal/infra/quota"
	"github.com/vietddude/pollster/internal/retry"
)

// Client wraps a Provider with retry, attachment validation, quota
// tracking and metrics. One Client is shared process-wide; it holds no
// per-call state.
type Client struct {
	provider Provider
	policy   retry.Policy
	quota    *quota.Tracker
	log      *slog.Logger
}

// NewClient creates a retry-governed completion client.
func NewClient(provider Provider, policy retry.Policy, tracker *quota.Tracker) *Client {
	return &Client{
		provider: provider,
		policy:   policy,
		quota:    tracker,
		log:      slog.Default().With("component", "llm"),
	}
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider { return c.provider }

// CompleteJSON runs a completion until its text contains one decodable
// JSON object matching T that also passes check. A completion with no
// JSON object, with JSON that does not fit the schema, or that fails
// check counts as a retryable failure: the vendor may have returned a
// truncated or garbled body that a fresh attempt fixes. A check that
// returns a terminal error stops the loop instead. check may be nil.
func CompleteJSON[T any](ctx context.Context, c *Client, op string, req Request, onRetry retry.Observer, check func(*T) error) (T, error) {
	var zero T
	if err := prepareImages(&req); err != nil {
		return zero, err
	}

	start := time.Now()
	out, err := retry.Do(ctx, c.policy, c.observe(op, onRetry), func(ctx context.Context) (T, error) {
		var decoded T
		c.quota.RecordCall(c.provider.Name(), op)

		text, err := c.provider.Complete(ctx, req)
		if err != nil {
			return decoded, err
		}

		raw, ok := ExtractJSON(text)
		if !ok {
			return decoded, &retry.ParseError{Service: c.provider.Name(), Reason: "no JSON object in completion"}
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return decoded, &retry.ParseError{Service: c.provider.Name(), Reason: "completion JSON does not match schema", Err: err}
		}
		if check != nil {
			if err := check(&decoded); err != nil {
				var terminal *retry.TerminalError
				if errors.As(err, &terminal) {
					return decoded, err
				}
				return decoded, &retry.ParseError{Service: c.provider.Name(), Reason: "completion failed validation", Err: err}
			}
		}
		return decoded, nil
	})

	c.record(op, start, err)
	return out, err
}

func (c *Client) observe(op string, onRetry retry.Observer) retry.Observer {
	return func(attempt int, err error, delay time.Duration) {
		cls := retry.Classify(err)
		metrics.RetriesTotal.WithLabelValues(c.provider.Name(), string(cls.Kind)).Inc()
		c.log.Warn("Retrying completion",
			"operation", op,
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

func (c *Client) record(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ExternalCallsTotal.WithLabelValues(c.provider.Name(), op, outcome).Inc()
	metrics.ExternalCallLatency.WithLabelValues(c.provider.Name(), op).Observe(time.Since(start).Seconds())
}

// prepareImages drops attachments that did not survive encoding and sniffs
// missing media types. A request that asked for images but has none left
// is a caller problem, not a transient one.
func prepareImages(req *Request) error {
	if len(req.Images) == 0 {
		return nil
	}

	kept := make([]Image, 0, len(req.Images))
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		if img.MediaType == "" {
			img.MediaType = http.DetectContentType(img.Data)
		}
		kept = append(kept, img)
	}
	if len(kept) == 0 {
		return retry.Terminal("invalid input: no usable image attachments", nil)
	}
	req.Images = kept
	return nil
}
