package retry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Class groups failures by how the invoker treats them
type Class int

const (
	// ClassPermanent errors propagate immediately
	ClassPermanent Class = iota
	// ClassRateLimit errors (HTTP 429, exhausted quota) back off three times longer
	ClassRateLimit
	// ClassOverload errors (HTTP 503, overloaded upstream) back off at the base delay
	ClassOverload
)

func (c Class) String() string {
	switch c {
	case ClassRateLimit:
		return "rate_limit"
	case ClassOverload:
		return "overload"
	default:
		return "permanent"
	}
}

// StatusError is a non-success HTTP answer from an upstream service
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d %s", e.Service, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Message)
}

var (
	rateLimitIndicators = []string{"429", "too many requests", "rate limit", "quota", "resource_exhausted"}
	overloadIndicators  = []string{"503", "overloaded", "unavailable"}
)

// Classify decides whether err is worth retrying.
// A wrapped *StatusError is authoritative; other errors are matched on their message.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return ClassRateLimit
		case http.StatusServiceUnavailable, 529: // 529: Anthropic "overloaded"
			return ClassOverload
		default:
			return ClassPermanent
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range rateLimitIndicators {
		if strings.Contains(msg, s) {
			return ClassRateLimit
		}
	}
	for _, s := range overloadIndicators {
		if strings.Contains(msg, s) {
			return ClassOverload
		}
	}
	return ClassPermanent
}
