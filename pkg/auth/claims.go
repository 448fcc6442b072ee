package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomerTokenPayload captures the data available when minting a customer JWT.
type CustomerTokenPayload struct {
	UserID string
	Email  string
}

// CustomerClaims is the typed JWT a signed-in storefront customer presents.
// UserID is the commerce backend's user id and becomes the order's user relation.
type CustomerClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
