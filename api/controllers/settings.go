package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// CheckoutSettings serves the delivery, payment and promo catalog.
func CheckoutSettings(provider settings.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings provider unavailable"))
			return
		}
		catalog, err := provider.Catalog(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout settings"))
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		responses.WriteSuccess(w, catalog)
	}
}
