package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

type authCapture struct {
	called bool
	user   string
	bearer string
}

func (c *authCapture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.user = CustomerIDFromContext(r.Context())
		c.bearer = commerce.BearerTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestOptionalAuthLetsGuestsThrough(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	capture := &authCapture{}

	resp := httptest.NewRecorder()
	OptionalAuth(cfg, nil)(capture.handler()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusOK || !capture.called {
		t.Fatalf("expected guest request to pass, got %d", resp.Code)
	}
	if capture.user != "" || capture.bearer != "" {
		t.Fatalf("expected no user or bearer for guests, got %+v", capture)
	}
}

func TestOptionalAuthAttachesVerifiedUser(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	token, err := auth.MintCustomerToken(cfg, time.Now(), time.Hour, auth.CustomerTokenPayload{UserID: "17"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	capture := &authCapture{}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	OptionalAuth(cfg, nil)(capture.handler()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if capture.user != "17" {
		t.Fatalf("expected user 17, got %q", capture.user)
	}
	if capture.bearer != token {
		t.Fatalf("expected customer token forwarded to commerce")
	}
}

func TestOptionalAuthRejectsInvalidTokenWhenVerifying(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	capture := &authCapture{}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	OptionalAuth(cfg, nil)(capture.handler()).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if capture.called {
		t.Fatalf("handler should not run with an invalid token")
	}
}

func TestOptionalAuthForwardsTokenWithoutVerification(t *testing.T) {
	capture := &authCapture{}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque-backend-jwt")
	resp := httptest.NewRecorder()
	OptionalAuth(config.JWTConfig{}, nil)(capture.handler()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if capture.bearer != "opaque-backend-jwt" || capture.user != "" {
		t.Fatalf("expected token forwarded without user, got %+v", capture)
	}
}

func TestOptionalAuthRejectsOtherSchemes(t *testing.T) {
	for _, header := range []string{"Basic dXNlcjpwYXNz", "Bearer", "token-without-scheme"} {
		capture := &authCapture{}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", header)
		resp := httptest.NewRecorder()
		OptionalAuth(config.JWTConfig{}, nil)(capture.handler()).ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized || capture.called {
			t.Fatalf("%q: expected 401 without reaching the handler, got %d", header, resp.Code)
		}
	}
}

func TestParseBearerIsCaseInsensitive(t *testing.T) {
	token, ok := parseBearer("bEaReR  abc ")
	if !ok || token != "abc" {
		t.Fatalf("expected abc, got %q ok=%v", token, ok)
	}
}
