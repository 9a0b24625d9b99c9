package ollama

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/infrastructure/resilience"
)

func classifyError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{Retryable: false, CountsAsTrip: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if retryableStatus(statusErr.StatusCode) {
			return resilience.Verdict{Retryable: true, CountsAsTrip: true}
		}
		// 4xx means the request itself is wrong; the server is healthy.
		return resilience.Verdict{Retryable: false, CountsAsTrip: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retryable: true, CountsAsTrip: true}
	}

	return resilience.Verdict{Retryable: false, CountsAsTrip: true}
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// wrapUnavailable marks transport-level failures with the provider error kind
// so the boundary maps them to 503 instead of a generic 500.
func wrapUnavailable(operation string, err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) || classifyError(err).Retryable {
		return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
	}
	return err
}
