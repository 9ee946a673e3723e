// Package service defines the domain-facing interfaces implemented by the
// infrastructure layer.
package service

import (
	"context"
	"time"

	"github.com/oljc/arcoserve/internal/domain/models"
)

// TokenService issues and parses the dual access/refresh JWTs.
type TokenService interface {
	// CreateAccessToken issues a short-lived access token for the user.
	CreateAccessToken(userID int64, username, role string) (string, error)

	// CreateRefreshToken issues a long-lived refresh token for the user.
	CreateRefreshToken(userID int64, username string) (string, error)

	// IssueTokenPair issues an access and a refresh token in one call.
	IssueTokenPair(userID int64, username, role string) (access string, refresh string, err error)

	// Parse verifies signature, issuer, audience and expiry, returning the
	// structured claims. Failures are errors.ErrTokenExpired or errors.ErrTokenInvalid.
	Parse(token string) (*models.TokenClaims, error)

	// IsAccessToken reports whether the token parses as an access token.
	IsAccessToken(token string) bool

	// IsRefreshToken reports whether the token parses as a refresh token.
	IsRefreshToken(token string) bool

	// RemainingSeconds returns the token's remaining lifetime, zero if expired or invalid.
	RemainingSeconds(token string) int64

	// TokenID returns the jti claim.
	TokenID(token string) (string, error)
}

// RevocationStore tracks blacklisted token ids and per-user active-token sets.
type RevocationStore interface {
	// Blacklist marks the token's id revoked for its remaining lifetime. Expired
	// or malformed tokens are a no-op.
	Blacklist(ctx context.Context, token string)

	// IsBlacklisted reports whether the token's id is on the denylist.
	IsBlacklisted(ctx context.Context, token string) (bool, error)

	// Track records the token id in the issuing user's active set.
	Track(ctx context.Context, token string)

	// Untrack removes the token id from the user's active set.
	Untrack(ctx context.Context, token string)

	// RevokeAllForUser blacklists every tracked token id of the user with a
	// conservative TTL and clears the set. This is the "log out everywhere" path.
	RevokeAllForUser(ctx context.Context, userID int64) error

	// IsValid reports whether the token parses and is not blacklisted.
	IsValid(ctx context.Context, token string) bool

	// ActiveTokenCount returns the size of the user's active-token set.
	ActiveTokenCount(ctx context.Context, userID int64) (int64, error)

	// CleanupExpired drops tracked token ids whose expiry has passed.
	CleanupExpired(ctx context.Context, userID int64) error
}

// RateLimitResult is the outcome of an atomic limiter check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
}

// CounterResult is the outcome of a bounded counter update.
type CounterResult struct {
	Accepted bool
	Value    int64
}

// AtomicStore executes multi-step check/update sequences as single atomic units
// against the shared key-value store. Partial application under concurrent
// callers is a correctness bug; every operation runs as one server-side script.
type AtomicStore interface {
	// SlidingWindowLimit prunes entries older than the window, counts the rest,
	// and admits the request iff the count is strictly below limit.
	SlidingWindowLimit(ctx context.Context, key string, window time.Duration, limit int) (RateLimitResult, error)

	// TokenBucketLimit refills the bucket at rate tokens/second up to capacity
	// and consumes one token if at least one is available. The reported remaining
	// count is floored; internal state keeps fractional precision.
	TokenBucketLimit(ctx context.Context, key string, rate float64, capacity int) (RateLimitResult, error)

	// AcquireLock acquires or re-enters the named lock. Returns the reentrancy
	// count, or zero when a different owner holds the lock.
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (int64, error)

	// ReleaseLock decrements the reentrancy count, deleting the lock at zero.
	// Returns the remaining count, or -1 when the caller is not the owner.
	ReleaseLock(ctx context.Context, key, owner string) (int64, error)

	// BoundedCounter adds delta to the counter, rejecting without mutation when
	// the result would exceed max (max <= 0 means unbounded).
	BoundedCounter(ctx context.Context, key string, delta int64, ttl time.Duration, max int64) (CounterResult, error)

	// DelayQueueAdd schedules an item for execution after delay.
	DelayQueueAdd(ctx context.Context, key, item string, delay time.Duration) error

	// DelayQueuePop atomically removes and returns up to limit items whose
	// scheduled time has passed.
	DelayQueuePop(ctx context.Context, key string, limit int) ([]string, error)

	// BloomCheckAndAdd inserts the item into the probabilistic filter and reports
	// whether it may have been present before.
	BloomCheckAndAdd(ctx context.Context, key, item string, hashCount, bitSize int) (bool, error)

	// CacheGuard writes value under cacheKey if the short lock is won, preventing
	// a stampede of rebuilders. Reports whether the cache now holds a value.
	CacheGuard(ctx context.Context, cacheKey, lockKey, value string, cacheTTL, lockTTL time.Duration) (bool, error)
}

// SecretProvider resolves the process-wide signing secrets.
type SecretProvider interface {
	// JWTSecret returns the HS256 key for the token service.
	JWTSecret(ctx context.Context) (string, error)

	// SigningSecret returns the HMAC secret for request-signature verification.
	SigningSecret(ctx context.Context) (string, error)
}

// UserAuthenticator is the boundary to the user module, which lives outside
// this layer. It checks credentials and returns the user's identity and role.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (userID int64, role string, err error)
}

// RevocationPublisher announces token revocations to interested consumers.
// Publishing is best-effort; the local blacklist is authoritative.
type RevocationPublisher interface {
	PublishRevoked(ctx context.Context, jti string, userID int64, reason string) error
}
