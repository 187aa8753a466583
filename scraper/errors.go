package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies why a page fetch produced no result.
type FailureKind int

const (
	FailureHTTPOther FailureKind = iota
	FailureForbidden
	FailureRateLimited
	FailureTimeout
	FailureTransport
	FailureDecode
)

func (k FailureKind) String() string {
	switch k {
	case FailureForbidden:
		return "forbidden"
	case FailureRateLimited:
		return "rate_limited"
	case FailureHTTPOther:
		return "http_other"
	case FailureTimeout:
		return "timeout"
	case FailureTransport:
		return "transport"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError describes a failed page fetch.
type FetchError struct {
	Kind       FailureKind
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("page %d: %s (status %d): %v", e.Page, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("page %d: %s: %v", e.Page, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Hint returns operator advice for the failure, if any.
func (e *FetchError) Hint() string {
	switch e.Kind {
	case FailureForbidden:
		return "access denied; the cookie, CSRF token or browser headers are probably stale"
	case FailureRateLimited:
		return "rate limited; widen the delay between requests"
	default:
		return ""
	}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return "other"
}

// classifyError maps a transport error and status code to a failure kind.
// A status code always wins: the server answered, so it is an HTTP failure.
func classifyError(err error, statusCode int) FailureKind {
	if statusCode != 0 {
		switch statusCode {
		case http.StatusForbidden:
			return FailureForbidden
		case http.StatusTooManyRequests:
			return FailureRateLimited
		default:
			return FailureHTTPOther
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureTransport
}
