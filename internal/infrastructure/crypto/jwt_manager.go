// Package crypto implements the token service on top of golang-jwt.
package crypto

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
)

// JWTConfig carries the signing parameters for the token service.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type jwtManager struct {
	key      []byte
	issuer   string
	audience string

	accessTTL  time.Duration
	refreshTTL time.Duration

	// now is injectable so expiry behavior is testable without sleeping.
	now func() time.Time
}

// NewJWTManager creates the token service. A zero TTL falls back to the
// package defaults.
func NewJWTManager(cfg JWTConfig) service.TokenService {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = constants.AccessTokenDefaultTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = constants.RefreshTokenDefaultTTL
	}
	return &jwtManager{
		key:        []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// NewJWTManagerWithClock creates the token service with an injected clock.
// Used by tests to simulate expiry.
func NewJWTManagerWithClock(cfg JWTConfig, now func() time.Time) service.TokenService {
	mgr := NewJWTManager(cfg).(*jwtManager)
	mgr.now = now
	return mgr
}

func (m *jwtManager) CreateAccessToken(userID int64, username, role string) (string, error) {
	return m.create(userID, username, role, constants.TokenTypeAccess, m.accessTTL)
}

func (m *jwtManager) CreateRefreshToken(userID int64, username string) (string, error) {
	return m.create(userID, username, "", constants.TokenTypeRefresh, m.refreshTTL)
}

func (m *jwtManager) IssueTokenPair(userID int64, username, role string) (string, string, error) {
	access, err := m.CreateAccessToken(userID, username, role)
	if err != nil {
		return "", "", err
	}
	refresh, err := m.CreateRefreshToken(userID, username)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (m *jwtManager) create(userID int64, username, role string, tokenType constants.TokenType, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &models.TokenClaims{
		UID:  userID,
		Type: tokenType,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", errors.Internal(err)
	}
	return signed, nil
}

// Parse verifies the token and returns its claims. Issuer and audience are
// required to match, not just the signature; expiry surfaces as ErrTokenExpired
// so callers can distinguish it from structural failures.
func (m *jwtManager) Parse(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.key, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired.WithCause(err)
		}
		return nil, errors.ErrTokenInvalid.WithCause(err)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.ErrTokenInvalid
	}
	return claims, nil
}

func (m *jwtManager) IsAccessToken(token string) bool {
	claims, err := m.Parse(token)
	return err == nil && claims.IsAccess()
}

func (m *jwtManager) IsRefreshToken(token string) bool {
	claims, err := m.Parse(token)
	return err == nil && claims.IsRefresh()
}

func (m *jwtManager) RemainingSeconds(token string) int64 {
	claims, err := m.Parse(token)
	if err != nil {
		return 0
	}
	return claims.RemainingSeconds(m.now())
}

func (m *jwtManager) TokenID(token string) (string, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}
