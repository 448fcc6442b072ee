package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/sony/gobreaker/v2"
)

// StatusError is a non-2xx response from the commerce backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("commerce %s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// UpstreamStatus and UpstreamOperation feed pkg/errors.Dump.
func (e *StatusError) UpstreamStatus() int { return e.StatusCode }

func (e *StatusError) UpstreamOperation() string { return e.Method + " " + e.Path }

// Rejected reports a client-side rejection (4xx other than 429). These are
// answers from a healthy backend, not signs of an outage.
func (e *StatusError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// countsAsSuccess classifies results for the circuit breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Rejected()
	}
	return false
}

func mapError(err error, method, path string) error {
	if err == nil {
		return nil
	}
	op := fmt.Sprintf("commerce %s %s", method, path)

	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		code := pkgerrors.CodeDependency
		if statusErr.StatusCode == http.StatusNotFound {
			code = pkgerrors.CodeNotFound
		}
		return pkgerrors.Wrap(code, err, op+" failed").WithDetails(map[string]any{
			"status": statusErr.StatusCode,
		})
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, op+" timed out")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" short-circuited")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" failed")
	}
}
