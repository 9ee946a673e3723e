// Package models defines the domain objects shared by the authentication layer.
package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oljc/arcoserve/pkg/constants"
)

// TokenClaims is the JWT claim set issued by the token service.
type TokenClaims struct {
	UID  int64               `json:"uid"`
	Type constants.TokenType `json:"type"`
	Role string              `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAccess reports whether the claims belong to an access token.
func (c *TokenClaims) IsAccess() bool { return c.Type == constants.TokenTypeAccess }

// IsRefresh reports whether the claims belong to a refresh token.
func (c *TokenClaims) IsRefresh() bool { return c.Type == constants.TokenTypeRefresh }

// RemainingSeconds returns the token lifetime left at the given instant, floored at zero.
func (c *TokenClaims) RemainingSeconds(now time.Time) int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	remain := int64(c.ExpiresAt.Time.Sub(now).Seconds())
	if remain < 0 {
		return 0
	}
	return remain
}

// Principal is the authenticated identity attached to the request context after
// successful token authentication.
type Principal struct {
	UserID    int64               `json:"userId"`
	Username  string              `json:"username"`
	Role      string              `json:"role,omitempty"`
	TokenType constants.TokenType `json:"tokenType"`
}

// PrincipalFromClaims builds a Principal out of verified token claims.
func PrincipalFromClaims(claims *TokenClaims) *Principal {
	return &Principal{
		UserID:    claims.UID,
		Username:  claims.Subject,
		Role:      claims.Role,
		TokenType: claims.Type,
	}
}
