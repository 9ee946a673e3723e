package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oljc/arcoserve/internal/application/dto"
	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/infrastructure/crypto"
	"github.com/oljc/arcoserve/internal/infrastructure/redis"
	"github.com/oljc/arcoserve/internal/infrastructure/signing"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	mr         *miniredis.Miniredis
	atomic     service.AtomicStore
	tokens     service.TokenService
	revocation service.RevocationStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tokens := crypto.NewJWTManager(crypto.JWTConfig{
		Secret:   "unit-test-secret",
		Issuer:   "arcoserve",
		Audience: "arcoserve-clients",
	})
	return &testEnv{
		mr:         mr,
		atomic:     redis.NewAtomicStore(rdb),
		tokens:     tokens,
		revocation: redis.NewRevocationStore(rdb, tokens, nil, logger.NewNullLogger()),
	}
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OK(nil))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRateLimitAllowsThenDenies(t *testing.T) {
	env := newTestEnv(t)
	policy := models.RateLimitPolicy{Limit: 2, Window: time.Minute, ByIP: true, Message: "slow down"}

	r := gin.New()
	r.GET("/api/ping", RateLimit(env.atomic, policy, nil, logger.NewNullLogger()), okHandler)

	doGet := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set(constants.HeaderRealIP, ip)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, doGet("1.2.3.4").Code)
	assert.Equal(t, http.StatusOK, doGet("1.2.3.4").Code)

	w := doGet("1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, 429, resp.Code)
	assert.Equal(t, "slow down", resp.Message)

	// A different client IP gets its own window.
	assert.Equal(t, http.StatusOK, doGet("5.6.7.8").Code)
}

func TestRateLimitFailsClosedWhenStoreDown(t *testing.T) {
	env := newTestEnv(t)
	policy := models.RateLimitPolicy{Limit: 2, Window: time.Minute}

	r := gin.New()
	r.GET("/api/ping", RateLimit(env.atomic, policy, nil, logger.NewNullLogger()), okHandler)

	env.mr.Close()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSignatureCheckMissingHeaders(t *testing.T) {
	signer := signing.NewSigner(signing.Credential{AccessKeyID: "ak", SecretKey: "sk"})

	r := gin.New()
	r.GET("/api/me", SignatureCheck(signer, models.SignaturePolicy{Required: true, MaxAge: 5 * time.Minute}, nil, logger.NewNullLogger()), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 3001, decodeEnvelope(t, w).Code)
}

func TestSignatureCheckValidAndTampered(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	signer := signing.NewSigner(signing.Credential{AccessKeyID: "ak", SecretKey: "sk"}).
		WithClock(func() time.Time { return now })

	r := gin.New()
	r.POST("/api/orders", SignatureCheck(signer, models.SignaturePolicy{Required: true, MaxAge: 5 * time.Minute}, nil, logger.NewNullLogger()), okHandler)

	body := []byte(`{"amount":100}`)
	sign := func(payload []byte) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(constants.HeaderDate, "20240101T000000Z")
		req.Header.Set(constants.HeaderFingerprint, "dev123")
		auth, err := signer.Sign(req, body)
		require.NoError(t, err)
		req.Header.Set(constants.HeaderAuthorization, auth)
		return req
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)

	// Same signature over a different body.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, sign([]byte(`{"amount":900}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 3005, decodeEnvelope(t, w).Code)
}

func TestSignatureCheckExpired(t *testing.T) {
	signTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	signer := signing.NewSigner(signing.Credential{AccessKeyID: "ak", SecretKey: "sk"}).
		WithClock(func() time.Time { return signTime.Add(10 * time.Minute) })

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(constants.HeaderDate, "20240101T000000Z")
	req.Header.Set(constants.HeaderFingerprint, "dev123")
	auth, err := signer.Sign(req, nil)
	require.NoError(t, err)
	req.Header.Set(constants.HeaderAuthorization, auth)

	r := gin.New()
	r.GET("/api/me", SignatureCheck(signer, models.SignaturePolicy{Required: true, MaxAge: 5 * time.Minute}, nil, logger.NewNullLogger()), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 3004, decodeEnvelope(t, w).Code)
}

func TestSignatureCheckSkippedWhenNotRequired(t *testing.T) {
	signer := signing.NewSigner(signing.Credential{AccessKeyID: "ak", SecretKey: "sk"})

	r := gin.New()
	r.GET("/health", SignatureCheck(signer, models.SignaturePolicy{Required: false}, nil, logger.NewNullLogger()), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSignatureCheckPreservesBodyForHandler(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	signer := signing.NewSigner(signing.Credential{AccessKeyID: "ak", SecretKey: "sk"}).
		WithClock(func() time.Time { return now })

	r := gin.New()
	r.POST("/api/echo",
		SignatureCheck(signer, models.SignaturePolicy{Required: true, MaxAge: 5 * time.Minute}, nil, logger.NewNullLogger()),
		func(c *gin.Context) {
			var payload map[string]any
			require.NoError(t, c.ShouldBindJSON(&payload))
			c.JSON(http.StatusOK, dto.OK(payload))
		})

	body := []byte(`{"name":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/echo", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HeaderDate, "20240101T000000Z")
	req.Header.Set(constants.HeaderFingerprint, "dev123")
	auth, err := signer.Sign(req, body)
	require.NoError(t, err)
	req.Header.Set(constants.HeaderAuthorization, auth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestTokenAuthSetsPrincipal(t *testing.T) {
	env := newTestEnv(t)

	r := gin.New()
	r.Use(TokenAuth(env.tokens, env.revocation, nil, logger.NewNullLogger()))
	r.GET("/api/me", func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, dto.OK(principal))
	})

	token, err := env.tokens.CreateAccessToken(42, "alice", "admin")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(constants.HeaderAccessToken, token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	// Authenticating also tracks the token for bulk revocation.
	n, err := env.revocation.ActiveTokenCount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTokenAuthLegacyHeader(t *testing.T) {
	env := newTestEnv(t)

	r := gin.New()
	r.Use(TokenAuth(env.tokens, env.revocation, nil, logger.NewNullLogger()))
	r.GET("/api/me", func(c *gin.Context) {
		_, ok := GetPrincipal(c)
		c.JSON(http.StatusOK, dto.OK(ok))
	})

	token, err := env.tokens.CreateAccessToken(42, "alice", "")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(constants.HeaderAccessTokenLegacy, token)
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "true")
}

func TestTokenAuthAnonymousOnBadToken(t *testing.T) {
	env := newTestEnv(t)

	r := gin.New()
	r.Use(TokenAuth(env.tokens, env.revocation, nil, logger.NewNullLogger()))
	r.GET("/api/public", func(c *gin.Context) {
		_, ok := GetPrincipal(c)
		c.JSON(http.StatusOK, dto.OK(ok))
	})

	// Garbage token: the request still runs, unauthenticated.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
	req.Header.Set(constants.HeaderAccessToken, "garbage")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "false")
}

func TestTokenAuthRejectsRevokedToken(t *testing.T) {
	env := newTestEnv(t)

	r := gin.New()
	r.Use(TokenAuth(env.tokens, env.revocation, nil, logger.NewNullLogger()))
	r.GET("/api/me", RequirePrincipal(constants.TokenTypeAccess), okHandler)

	token, err := env.tokens.CreateAccessToken(42, "alice", "")
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set(constants.HeaderAccessToken, token)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)

	env.revocation.Blacklist(context.Background(), token)
	assert.Equal(t, http.StatusUnauthorized, send().Code)
}

func TestTokenAuthRejectsRefreshTokenInHeader(t *testing.T) {
	env := newTestEnv(t)

	r := gin.New()
	r.Use(TokenAuth(env.tokens, env.revocation, nil, logger.NewNullLogger()))
	r.GET("/api/me", RequirePrincipal(constants.TokenTypeAccess), okHandler)

	refresh, err := env.tokens.CreateRefreshToken(42, "alice")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(constants.HeaderAccessToken, refresh)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenAuthRefreshCookieOnlyOnRefreshPath(t *testing.T) {
	env := newTestEnv(t)

	r := gin.New()
	r.Use(TokenAuth(env.tokens, env.revocation, nil, logger.NewNullLogger()))
	report := func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusOK, dto.OK("anonymous"))
			return
		}
		c.JSON(http.StatusOK, dto.OK(string(principal.TokenType)))
	}
	r.POST(constants.RefreshEndpointPath, report)
	r.GET("/api/me", report)

	refresh, err := env.tokens.CreateRefreshToken(42, "alice")
	require.NoError(t, err)
	cookie := &http.Cookie{Name: constants.RefreshTokenCookie, Value: refresh}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, constants.RefreshEndpointPath, nil)
	req.AddCookie(cookie)
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "refresh")

	// The same cookie is ignored everywhere else.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "anonymous")
}

func TestRequirePrincipalWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/api/me", RequirePrincipal(constants.TokenTypeAccess), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 401, decodeEnvelope(t, w).Code)
}

func TestRequestIDHeaderAndContext(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		id := c.Request.Context().Value(constants.ContextKeyRequestID)
		c.JSON(http.StatusOK, dto.OK(id))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
