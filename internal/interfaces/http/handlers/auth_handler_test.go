package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oljc/arcoserve/internal/application/dto"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/infrastructure/crypto"
	"github.com/oljc/arcoserve/internal/infrastructure/redis"
	"github.com/oljc/arcoserve/internal/interfaces/http/middleware"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
	"github.com/oljc/arcoserve/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct{}

func (fakeUsers) Authenticate(ctx context.Context, username, password string) (int64, string, error) {
	if username == "alice" && password == "secret" {
		return 42, "admin", nil
	}
	return 0, "", errors.ErrUnauthorized
}

type recordingScheduler struct {
	users []int64
}

func (s *recordingScheduler) ScheduleUserCleanup(ctx context.Context, userID int64) error {
	s.users = append(s.users, userID)
	return nil
}

type authFixture struct {
	engine     *gin.Engine
	tokens     service.TokenService
	revocation service.RevocationStore
	scheduler  *recordingScheduler
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tokens := crypto.NewJWTManager(crypto.JWTConfig{
		Secret:   "unit-test-secret",
		Issuer:   "arcoserve",
		Audience: "arcoserve-clients",
	})
	revocation := redis.NewRevocationStore(rdb, tokens, nil, logger.NewNullLogger())
	scheduler := &recordingScheduler{}
	handler := NewAuthHandler(tokens, revocation, fakeUsers{}, scheduler, 604800, logger.NewNullLogger())

	engine := gin.New()
	engine.Use(middleware.TokenAuth(tokens, revocation, nil, logger.NewNullLogger()))
	engine.POST("/api/auth/login", handler.Login)
	engine.POST("/api/auth/refresh", handler.Refresh)
	engine.POST("/api/auth/logout", handler.Logout)
	engine.POST("/api/auth/logout-all",
		middleware.RequirePrincipal(constants.TokenTypeAccess), handler.LogoutAll)

	return &authFixture{engine: engine, tokens: tokens, revocation: revocation, scheduler: scheduler}
}

func (f *authFixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(gin.H{"username": username, "password": password})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.engine.ServeHTTP(w, req)
	return w
}

func accessTokenFrom(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code int `json:"code"`
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func refreshCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == constants.RefreshTokenCookie {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := newAuthFixture(t)

	w := f.login(t, "alice", "secret")
	require.Equal(t, http.StatusOK, w.Code)

	access := accessTokenFrom(t, w)
	claims, err := f.tokens.Parse(access)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UID)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.IsAccess())

	cookie := refreshCookieFrom(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, constants.RefreshEndpointPath, cookie.Path)
	refreshClaims, err := f.tokens.Parse(cookie.Value)
	require.NoError(t, err)
	assert.True(t, refreshClaims.IsRefresh())

	// Both tokens are tracked and a cleanup got scheduled.
	n, err := f.revocation.ActiveTokenCount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []int64{42}, f.scheduler.users)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	w := f.login(t, "alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	f := newAuthFixture(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte(`{"username":"alice"}`)))
	req.Header.Set("Content-Type", "application/json")
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshRotatesPairAndRevokesOldRefresh(t *testing.T) {
	f := newAuthFixture(t)

	loginResp := f.login(t, "alice", "secret")
	oldCookie := refreshCookieFrom(t, loginResp)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: constants.RefreshTokenCookie, Value: oldCookie.Value})
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	newAccess := accessTokenFrom(t, w)
	assert.True(t, f.revocation.IsValid(context.Background(), newAccess))

	newCookie := refreshCookieFrom(t, w)
	assert.NotEqual(t, oldCookie.Value, newCookie.Value)

	// The consumed refresh token is dead; replaying it fails.
	assert.False(t, f.revocation.IsValid(context.Background(), oldCookie.Value))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: constants.RefreshTokenCookie, Value: oldCookie.Value})
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	f := newAuthFixture(t)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesTokensAndClearsCookie(t *testing.T) {
	f := newAuthFixture(t)

	loginResp := f.login(t, "alice", "secret")
	access := accessTokenFrom(t, loginResp)
	refresh := refreshCookieFrom(t, loginResp)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set(constants.HeaderAccessToken, access)
	req.AddCookie(&http.Cookie{Name: constants.RefreshTokenCookie, Value: refresh.Value})
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.False(t, f.revocation.IsValid(context.Background(), access))
	assert.False(t, f.revocation.IsValid(context.Background(), refresh.Value))

	cleared := refreshCookieFrom(t, w)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.MaxAge < 0)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	f := newAuthFixture(t)

	first := f.login(t, "alice", "secret")
	second := f.login(t, "alice", "secret")
	firstAccess := accessTokenFrom(t, first)
	secondAccess := accessTokenFrom(t, second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout-all", nil)
	req.Header.Set(constants.HeaderAccessToken, firstAccess)
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.False(t, f.revocation.IsValid(context.Background(), firstAccess))
	assert.False(t, f.revocation.IsValid(context.Background(), secondAccess))
}

func TestLogoutAllRequiresAuthentication(t *testing.T) {
	f := newAuthFixture(t)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout-all", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	engine := gin.New()
	engine.GET("/health", NewHealthHandler(rdb).Health)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	mr.Close()
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMeHandler(t *testing.T) {
	engine := gin.New()
	engine.GET("/api/me", Me)

	// Anonymous requests are refused.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 401, resp.Code)
}
