package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// ClassifyStatus maps a provider HTTP status to a domain error. Statuses
// without a dedicated kind keep err unchanged, which makes them permanent.
func ClassifyStatus(provider string, status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited, provider+" rate limit exceeded", err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusPaymentRequired:
		return domain.NewDomainErrorWithCause(domain.ErrCodeCapabilityAuth, provider+" rejected the credentials", err)
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, provider+" timed out", err)
	case status >= 500:
		return domain.NewDomainErrorWithCause(domain.ErrCodeCapabilityUnavailable,
			fmt.Sprintf("%s unavailable (HTTP %d)", provider, status), err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

// ClassifyTransport maps deadline and network failures to domain errors. It
// returns nil when err is neither.
func ClassifyTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, provider+" call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, provider+" call timed out", err)
		}
		return domain.NewDomainErrorWithCause(domain.ErrCodeCapabilityUnavailable, provider+" unreachable", err)
	}
	return nil
}

// ClassifyMessage classifies providers that only report failures as text.
// 429, RESOURCE_EXHAUSTED and quota messages are rate limits.
func ClassifyMessage(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if classified := ClassifyTransport(provider, err); classified != nil {
		return classified
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "RESOURCE_EXHAUSTED"), strings.Contains(strings.ToLower(msg), "quota"):
		return domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited, provider+" rate limit exceeded", err)
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "UNAUTHENTICATED"), strings.Contains(msg, "PERMISSION_DENIED"),
		strings.Contains(msg, "API_KEY_INVALID"):
		return domain.NewDomainErrorWithCause(domain.ErrCodeCapabilityAuth, provider+" rejected the credentials", err)
	case strings.Contains(msg, "DEADLINE_EXCEEDED"), strings.Contains(msg, "504"):
		return domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, provider+" timed out", err)
	case strings.Contains(msg, "UNAVAILABLE"), strings.Contains(msg, "INTERNAL"),
		strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"):
		return domain.NewDomainErrorWithCause(domain.ErrCodeCapabilityUnavailable, provider+" unavailable", err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

var retryDelayRe = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s"]+)(\d+(?:\.\d+)?)\s*s`)

// RetryDelay extracts a server-suggested delay such as "Please retry in 45.3s"
// from an error message, or returns 0.
func RetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelayRe.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
