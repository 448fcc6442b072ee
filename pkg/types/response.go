package types

// SuccessEnvelope wraps every 2xx body of the checkout API.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is safe to show to buyers. Retryable tells the storefront whether
// resubmitting under the same idempotency key can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}
