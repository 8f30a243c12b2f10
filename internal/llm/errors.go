package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrorClass is the provider error taxonomy the dispatcher acts on.
type ErrorClass string

const (
	ClassThrottled     ErrorClass = "throttled"
	ClassQuotaExceeded ErrorClass = "quota_exceeded"
	ClassTimeout       ErrorClass = "timeout"
	ClassOther         ErrorClass = "other"
)

// ProviderError is a classified failure of one vision call.
type ProviderError struct {
	Class      ErrorClass
	Model      ModelVariant
	RetryAfter time.Duration // zero when the provider gave no hint
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Model, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another variant may succeed where this one
// was refused.
func (e *ProviderError) Retryable() bool {
	return e.Class == ClassThrottled || e.Class == ClassQuotaExceeded
}

var retryDelayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry in ([\d.]+)\s*s`),
	regexp.MustCompile(`(?i)retry after ([\d.]+)\s*seconds?`),
	regexp.MustCompile(`(?i)retryDelay"?:\s*"?([\d.]+)s`),
}

// ParseRetryDelay extracts a suggested retry delay from a provider message.
func ParseRetryDelay(msg string) (time.Duration, bool) {
	for _, re := range retryDelayPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
		if err != nil || secs < 0 {
			continue
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}

// ClassifyError maps an error from the provider SDK to a ProviderError.
// An error that already is a *ProviderError is returned unchanged.
func ClassifyError(model ModelVariant, err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	pe := &ProviderError{Class: ClassOther, Model: model, Err: err}
	if d, ok := ParseRetryDelay(err.Error()); ok {
		pe.RetryAfter = d
	}

	if errors.Is(err, context.DeadlineExceeded) {
		pe.Class = ClassTimeout
		return pe
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			pe.Class = throttleClass(apiErr.Message)
		case apiErr.Code == http.StatusGatewayTimeout || apiErr.Status == "DEADLINE_EXCEEDED":
			pe.Class = ClassTimeout
		}
		return pe
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		pe.Class = throttleClass(msg)
	}
	return pe
}

func throttleClass(msg string) ErrorClass {
	if strings.Contains(strings.ToLower(msg), "quota") {
		return ClassQuotaExceeded
	}
	return ClassThrottled
}
