package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

func TestMintAndParseCustomerToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	now := time.Now().UTC()

	token, err := MintCustomerToken(cfg, now, 30*time.Minute, CustomerTokenPayload{UserID: "17", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("mint customer token: %v", err)
	}

	claims, err := ParseCustomerToken(cfg, token)
	if err != nil {
		t.Fatalf("parse customer token: %v", err)
	}
	if claims.UserID != "17" || claims.Subject != "17" {
		t.Fatalf("expected user 17, got %q/%q", claims.UserID, claims.Subject)
	}
	if claims.Email != "ana@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	token, err := MintCustomerToken(cfg, time.Now(), time.Minute, CustomerTokenPayload{UserID: "1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseCustomerToken(config.JWTConfig{Secret: "other", Issuer: "storefront"}, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	token, err := MintCustomerToken(cfg, time.Now().Add(-2*time.Hour), time.Minute, CustomerTokenPayload{UserID: "1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseCustomerToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseFallsBackToSubject(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "storefront",
		Subject:   "99",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	token, err := raw.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseCustomerToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "99" {
		t.Fatalf("expected subject fallback, got %q", claims.UserID)
	}
}

func TestMintValidatesInput(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.JWTConfig
		ttl     time.Duration
		payload CustomerTokenPayload
	}{
		{"missing secret", config.JWTConfig{Issuer: "storefront"}, time.Minute, CustomerTokenPayload{UserID: "1"}},
		{"missing issuer", config.JWTConfig{Secret: "s"}, time.Minute, CustomerTokenPayload{UserID: "1"}},
		{"zero ttl", config.JWTConfig{Secret: "s", Issuer: "storefront"}, 0, CustomerTokenPayload{UserID: "1"}},
		{"missing user", config.JWTConfig{Secret: "s", Issuer: "storefront"}, time.Minute, CustomerTokenPayload{}},
	}
	for _, tc := range cases {
		if _, err := MintCustomerToken(tc.cfg, time.Now(), tc.ttl, tc.payload); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestAudienceIsEnforcedWhenConfigured(t *testing.T) {
	minted := config.JWTConfig{Secret: "secret", Issuer: "storefront", Audience: "admin"}
	token, err := MintCustomerToken(minted, time.Now(), time.Minute, CustomerTokenPayload{UserID: "5"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	checkout := config.JWTConfig{Secret: "secret", Issuer: "storefront", Audience: "storefront-checkout"}
	if _, err := ParseCustomerToken(checkout, token); err == nil {
		t.Fatalf("expected audience mismatch to be rejected")
	}
	if _, err := ParseCustomerToken(minted, token); err != nil {
		t.Fatalf("matching audience should parse: %v", err)
	}
}

func TestLeewayAcceptsSlightlyExpiredToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront", Leeway: time.Minute}
	token, err := MintCustomerToken(cfg, time.Now().Add(-90*time.Second), time.Minute, CustomerTokenPayload{UserID: "5"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseCustomerToken(cfg, token); err != nil {
		t.Fatalf("token within leeway should parse: %v", err)
	}
}

func TestParseRequiresExpiry(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront"}
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "storefront", Subject: "5"})
	token, err := raw.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseCustomerToken(cfg, token); err == nil {
		t.Fatalf("tokens without exp should be rejected")
	}
}
