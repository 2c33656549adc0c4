package providers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FailoverReason categorizes why a provider call failed, driving both
// cooldown duration (see CooldownTracker) and whether FallbackChain should
// try the next candidate or give up.
type FailoverReason string

const (
	FailoverAuth         FailoverReason = "auth"
	FailoverBilling      FailoverReason = "billing"
	FailoverRateLimit    FailoverReason = "rate_limit"
	FailoverTimeout      FailoverReason = "timeout"
	FailoverOverloaded   FailoverReason = "overloaded"
	FailoverModelInvalid FailoverReason = "model_invalid"
	FailoverFormat       FailoverReason = "format"
	FailoverUnknown      FailoverReason = "unknown"
)

// FailoverError wraps a classified provider error with the context needed
// to decide cooldown and retry behavior.
type FailoverError struct {
	Reason   FailoverReason
	Provider string
	Model    string
	Status   int
	Wrapped  error
}

func (e *FailoverError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s/%s: %s (status=%d): %v", e.Provider, e.Model, e.Reason, e.Status, e.Wrapped)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Reason, e.Wrapped)
}

func (e *FailoverError) Unwrap() error { return e.Wrapped }

// IsRetriable reports whether a fallback chain should try the next
// candidate after this error. Only malformed-request errors (FailoverFormat)
// are assumed to repeat identically against any other candidate.
func (e *FailoverError) IsRetriable() bool {
	return e.Reason != FailoverFormat
}

// IsModelInvalid reports whether the provider rejected the specific model
// name rather than the request shape or credentials.
func (e *FailoverError) IsModelInvalid() bool {
	return e.Reason == FailoverModelInvalid
}

var (
	statusColonPattern = regexp.MustCompile(`(?i)status:?\s*(\d{3})`)
	httpStatusPattern  = regexp.MustCompile(`HTTP/\d(?:\.\d)?\s+(\d{3})`)
)

// extractHTTPStatus pulls a 3-digit HTTP status out of a "status: 429" or
// "HTTP/1.1 502 Bad Gateway" style error message. Returns 0 if none is
// found — a bare number elsewhere in the message (e.g. a model id) is
// deliberately not mistaken for a status code.
func extractHTTPStatus(msg string) int {
	if m := statusColonPattern.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := httpStatusPattern.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// IsImageDimensionError reports whether msg describes an image exceeding a
// provider's allowed width/height.
func IsImageDimensionError(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "image dimension")
}

// IsImageSizeError reports whether msg describes an image exceeding a
// provider's allowed file size.
func IsImageSizeError(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "image exceeds")
}

var modelInvalidPatterns = []string{
	"is not a valid model id",
	"model not found",
	"model_not_found",
	"not available in this region",
	"does not exist or you do not have access",
	"no such model",
	"invalid model specified",
	"is not supported",
	"is unavailable",
	"is deprecated",
}

var billingPatterns = []string{
	"payment required",
	"insufficient credit",
	"credit balance too low",
	"plans & billing",
	"insufficient balance",
}

var rateLimitPatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"exceeded your current quota",
	"resource has been exhausted",
	"resource_exhausted",
	"quota exceeded",
	"usage limit reached",
	"overloaded",
}

var timeoutPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
}

var authPatterns = []string{
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"invalid token",
	"authentication failed",
	"re-authenticate",
	"oauth token refresh failed",
	"unauthorized",
	"forbidden",
	"access denied",
	"expired",
	"no credentials found",
	"no api key found",
}

var formatPatterns = []string{
	"string should match pattern",
	"tool_use.id is required",
	"invalid tool_use_id",
	"tool_use.id must be valid",
	"invalid request format",
}

func matchesAny(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// classifyByPattern checks substring patterns in priority order: a model
// name being rejected outranks the generic "format" bucket a provider's
// validation-error prose would otherwise fall into.
func classifyByPattern(msg string) (FailoverReason, bool) {
	switch {
	case matchesAny(msg, modelInvalidPatterns):
		return FailoverModelInvalid, true
	case matchesAny(msg, billingPatterns):
		return FailoverBilling, true
	case matchesAny(msg, rateLimitPatterns):
		return FailoverRateLimit, true
	case matchesAny(msg, timeoutPatterns):
		return FailoverTimeout, true
	case matchesAny(msg, authPatterns):
		return FailoverAuth, true
	case IsImageDimensionError(msg), IsImageSizeError(msg):
		return FailoverFormat, true
	case matchesAny(msg, formatPatterns):
		return FailoverFormat, true
	default:
		return "", false
	}
}

func classifyByStatus(status int) (FailoverReason, bool) {
	switch status {
	case 401, 403:
		return FailoverAuth, true
	case 402:
		return FailoverBilling, true
	case 400:
		return FailoverModelInvalid, true
	case 408:
		return FailoverTimeout, true
	case 429:
		return FailoverRateLimit, true
	case 500, 502, 503, 521, 522, 523, 524, 529:
		return FailoverTimeout, true
	default:
		return "", false
	}
}

// ClassifyError turns a raw provider error into a FailoverError carrying a
// FailoverReason, or nil if the error is either unclassifiable or a user
// abort (context.Canceled) that should never trigger fallback. Text pattern
// matches take priority over a bare HTTP status code, since the message
// body is frequently more specific than the status alone (e.g. a 400 whose
// body names an unsupported model, not a malformed request).
func ClassifyError(err error, provider, model string) *FailoverError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FailoverError{Reason: FailoverTimeout, Provider: provider, Model: model, Wrapped: err}
	}

	msg := strings.ToLower(err.Error())
	status := extractHTTPStatus(msg)

	if reason, ok := classifyByPattern(msg); ok {
		return &FailoverError{Reason: reason, Provider: provider, Model: model, Status: status, Wrapped: err}
	}
	if status != 0 {
		if reason, ok := classifyByStatus(status); ok {
			return &FailoverError{Reason: reason, Provider: provider, Model: model, Status: status, Wrapped: err}
		}
	}
	return nil
}
