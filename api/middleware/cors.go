package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/storefront-checkout/api/responses"
)

var defaultCORSOrigins = []string{"http://localhost:3000"}

// CORS lets the storefront origins call the checkout API from the browser.
// The idempotency and request id headers must pass in both directions for
// the client's retry logic to work. Credentials are never allowed with "*".
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			IdempotencyKeyHeader, responses.RequestIDHeader,
		},
		ExposedHeaders:   []string{responses.RequestIDHeader, ReplayedHeader, "Retry-After"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}).Handler
}
