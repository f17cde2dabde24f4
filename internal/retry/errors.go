package retry

import (
	"fmt"
	"strings"
)

// HTTPError carries a non-2xx status from an external service. Adapters
// convert SDK and transport failures into this type at the boundary so
// classification works on one canonical shape.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, body)
}

// ParseError marks a malformed or truncated response body. A fresh attempt
// may return a clean one, so it classifies as retryable.
type ParseError struct {
	Service string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TerminalError forces a non-retryable failure regardless of how the
// underlying transport error would classify. Adapters raise it for domain
// conditions detected in response content, such as an exhausted account
// balance or an unusable input image.
type TerminalError struct {
	Kind   Kind // KindAuth or KindClient; empty defaults to KindClient
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err so the executor gives up immediately.
func Terminal(reason string, err error) *TerminalError {
	return &TerminalError{Reason: reason, Err: err}
}
