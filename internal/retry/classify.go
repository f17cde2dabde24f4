package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind identifies the failure class of an external call.
type Kind string

const (
	KindRateLimit   Kind = "rate_limit"
	KindServerError Kind = "server_error"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindAuth        Kind = "auth"
	KindClient      Kind = "client"
	KindParsing     Kind = "parsing"
	KindUnknown     Kind = "unknown"
)

// Classification is the retry decision derived from one failure.
// Retryable is false exactly when Kind is KindAuth or KindClient.
type Classification struct {
	Retryable  bool
	Kind       Kind
	StatusCode int
	Message    string
}

// Classify maps any failure to a Classification. Pure and total: it never
// panics and handles wrapped chains. Rules apply in priority order, first
// match wins.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Retryable: false, Kind: KindUnknown}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	// Domain terminal conditions override whatever the transport says.
	var term *TerminalError
	if errors.As(err, &term) {
		kind := KindClient
		if term.Kind == KindAuth {
			kind = KindAuth
		}
		return Classification{Retryable: false, Kind: kind, Message: authHint(kind, msg)}
	}

	// A canceled caller is not a service failure; give up without retrying.
	if errors.Is(err, context.Canceled) || strings.Contains(lower, "context canceled") {
		return Classification{Retryable: false, Kind: KindClient, Message: msg}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode, msg)
	}

	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return Classification{Retryable: true, Kind: KindRateLimit, Message: msg}
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "authentication"):
		return Classification{Retryable: false, Kind: KindAuth, Message: authHint(KindAuth, msg)}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{Retryable: true, Kind: KindTimeout, Message: msg}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Classification{Retryable: true, Kind: KindNetwork, Message: msg}
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE,
		syscall.EHOSTUNREACH, syscall.ETIMEDOUT,
	} {
		if errors.Is(err, errno) {
			return Classification{Retryable: true, Kind: KindNetwork, Message: msg}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{Retryable: true, Kind: KindTimeout, Message: msg}
	}

	switch {
	case strings.Contains(lower, "connection reset"), strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "broken pipe"), strings.Contains(lower, "no such host"),
		strings.Contains(lower, "host unreachable"), strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "unexpected eof"):
		return Classification{Retryable: true, Kind: KindNetwork, Message: msg}
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"):
		return Classification{Retryable: true, Kind: KindTimeout, Message: msg}
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return Classification{Retryable: true, Kind: KindParsing, Message: msg}
	}
	switch {
	case strings.Contains(lower, "no json"), strings.Contains(lower, "parse"),
		strings.Contains(lower, "unmarshal"), strings.Contains(lower, "unexpected end of json"),
		strings.Contains(lower, "invalid character"):
		return Classification{Retryable: true, Kind: KindParsing, Message: msg}
	case strings.Contains(lower, "invalid input"), strings.Contains(lower, "invalid image"),
		strings.Contains(lower, "unsupported media"), strings.Contains(lower, "not a product"):
		return Classification{Retryable: false, Kind: KindClient, Message: msg}
	}

	// Conservative default: unclassified errors are assumed transient.
	return Classification{Retryable: true, Kind: KindUnknown, Message: msg}
}

func classifyStatus(code int, msg string) Classification {
	switch {
	case code == http.StatusTooManyRequests:
		return Classification{Retryable: true, Kind: KindRateLimit, StatusCode: code, Message: msg}
	case code >= 500 && code <= 599:
		return Classification{Retryable: true, Kind: KindServerError, StatusCode: code, Message: msg}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Classification{Retryable: false, Kind: KindAuth, StatusCode: code, Message: authHint(KindAuth, msg)}
	case code >= 400 && code <= 499:
		return Classification{Retryable: false, Kind: KindClient, StatusCode: code, Message: msg}
	}
	return Classification{Retryable: true, Kind: KindUnknown, StatusCode: code, Message: msg}
}

func authHint(kind Kind, msg string) string {
	if kind != KindAuth || strings.Contains(strings.ToLower(msg), "credential") {
		return msg
	}
	return msg + " (check credential configuration)"
}
