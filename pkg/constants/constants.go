// Package constants defines system-wide constants for the arcoserve API service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Token Type Constants
// ================================================================================

// TokenType represents the type of authentication token carried in the "type" claim.
type TokenType string

const (
	// TokenTypeAccess represents a short-lived access token
	TokenTypeAccess TokenType = "access"

	// TokenTypeRefresh represents a long-lived refresh token
	TokenTypeRefresh TokenType = "refresh"
)

// ================================================================================
// Token Lifetime Constants
// ================================================================================

const (
	// AccessTokenDefaultTTL is the default lifetime for access tokens
	AccessTokenDefaultTTL = 15 * time.Minute

	// RefreshTokenDefaultTTL is the default lifetime for refresh tokens
	RefreshTokenDefaultTTL = 7 * 24 * time.Hour

	// BulkRevocationTTL is the blacklist TTL applied when revoking every token of a
	// user at once. The exact remaining lifetime of each token is not retained, so
	// the marker must outlive the longest-lived refresh token.
	BulkRevocationTTL = 7 * 24 * time.Hour
)

// ================================================================================
// HTTP Header Contract
// ================================================================================

const (
	// HeaderDate carries the request timestamp in SignDateFormat (UTC).
	HeaderDate = "X-Date"

	// HeaderFingerprint carries the opaque client/device identifier folded into
	// the signing key chain.
	HeaderFingerprint = "X-Fingerprint"

	// HeaderAuthorization carries the signature envelope.
	HeaderAuthorization = "Authorization"

	// HeaderAccessToken carries the bearer access JWT.
	HeaderAccessToken = "X-Access-Token"

	// HeaderAccessTokenLegacy is the fallback access token header kept for older clients.
	HeaderAccessTokenLegacy = "access-token"

	// HeaderRealIP carries the client IP as seen by the edge proxy.
	HeaderRealIP = "X-Real-IP"

	// RefreshTokenCookie is the HttpOnly cookie holding the refresh JWT. It is
	// consumed only at the refresh endpoint.
	RefreshTokenCookie = "refreshToken"
)

// ================================================================================
// Signature Scheme Constants
// ================================================================================

const (
	// SignAlgorithm is the algorithm label prefixing both the string-to-sign and
	// the Authorization header.
	SignAlgorithm = "LJC-HMAC-SHA256"

	// SignScopeTag binds signatures to this service's signing domain.
	SignScopeTag = "oljc"

	// SignDateFormat is the X-Date wire pattern (yyyyMMdd'T'HHmmss'Z', UTC).
	SignDateFormat = "20060102T150405Z"

	// SignDefaultMaxAge is the default acceptance window for signed requests.
	SignDefaultMaxAge = 5 * time.Minute
)

// ================================================================================
// Redis Key Prefixes
// ================================================================================

const (
	// KeyPrefixBlacklist prefixes revoked-token markers, keyed by jti.
	KeyPrefixBlacklist = "jwt:blacklist:"

	// KeyPrefixUserTokens prefixes per-user active-token sets, keyed by user id.
	KeyPrefixUserTokens = "jwt:user:"

	// KeyPrefixRateLimit prefixes rate limiter windows.
	KeyPrefixRateLimit = "rl:"

	// KeyPrefixLock prefixes distributed lock entries.
	KeyPrefixLock = "lock:"
)

// ================================================================================
// Gin Context Keys
// ================================================================================

const (
	// ContextKeyPrincipal is the gin context key holding the authenticated principal.
	ContextKeyPrincipal = "auth_principal"

	// ContextKeyRequestID is the gin context key holding the per-request id.
	ContextKeyRequestID = "request_id"
)

// ================================================================================
// Route Constants
// ================================================================================

const (
	// RefreshEndpointPath is the only route on which the refresh cookie is honored.
	RefreshEndpointPath = "/api/auth/refresh"
)
