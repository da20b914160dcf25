package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

var (
	// ErrUpstreamUnavailable is wrapped by every transport failure and
	// every non 2xx answer of the analysis service.
	ErrUpstreamUnavailable = errors.New("analysis service unavailable")
	// ErrRateLimited reports a 429 from the analysis service.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrQuotaExhausted reports a 402 from the analysis service.
	ErrQuotaExhausted = errors.New("API credits depleted, please add credits")
)

// maxErrorBody bounds the upstream body kept in an UpstreamError.
const maxErrorBody = 2048

// UpstreamError carries the HTTP detail of a failed analysis call.
type UpstreamError struct {
	Status int
	Body   string
	kind   error
}

func newUpstreamError(status int, body string) *UpstreamError {
	if len(body) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n]
	}
	kind := ErrUpstreamUnavailable
	switch status {
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	case http.StatusPaymentRequired:
		kind = ErrQuotaExhausted
	}
	return &UpstreamError{Status: status, Body: body, kind: kind}
}

func (e *UpstreamError) Error() string {
	if e.kind != ErrUpstreamUnavailable {
		return e.kind.Error()
	}
	if e.Body == "" {
		return fmt.Sprintf("AI processing failed: status %d", e.Status)
	}
	return "AI processing failed: " + e.Body
}

// Unwrap exposes both the specific failure and ErrUpstreamUnavailable.
func (e *UpstreamError) Unwrap() []error {
	if e.kind == ErrUpstreamUnavailable {
		return []error{ErrUpstreamUnavailable}
	}
	return []error{e.kind, ErrUpstreamUnavailable}
}

// Retryable reports whether repeating the call later may succeed.
func (e *UpstreamError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
