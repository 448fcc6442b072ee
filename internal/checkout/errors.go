package checkout

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrSubmissionInProgress rejects a Submit while another one is running.
	ErrSubmissionInProgress = errors.New("checkout submission already in progress")
	// ErrNotIdle rejects a Submit before the previous attempt was Reset.
	ErrNotIdle = errors.New("checkout is not idle")
	// ErrCannotAbandon rejects Abandon once the order request has been sent.
	ErrCannotAbandon = errors.New("checkout can only be abandoned before the order is created")
	// ErrMissingOrderID fails a hosted-payment submission whose order came back without an id.
	ErrMissingOrderID = errors.New("order response did not include an order id")
)

// ValidationError lists the fields that blocked a submission. Keys are
// dotted paths such as "customer.phone" or "lines[1].quantity".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "checkout validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "checkout validation failed: " + strings.Join(keys, ", ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
}

func (e *ValidationError) empty() bool {
	return e == nil || len(e.Fields) == 0
}
