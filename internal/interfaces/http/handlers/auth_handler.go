// Package handlers exposes the thin HTTP surface over the authentication core:
// login, refresh, logout and logout-everywhere. Business entities stay behind
// the UserAuthenticator boundary.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oljc/arcoserve/internal/application/dto"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/interfaces/http/middleware"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
	"github.com/oljc/arcoserve/pkg/logger"
)

// CleanupScheduler enqueues a delayed prune of a user's active-token set.
type CleanupScheduler interface {
	ScheduleUserCleanup(ctx context.Context, userID int64) error
}

// AuthHandler wires the token lifecycle endpoints.
type AuthHandler struct {
	tokens     service.TokenService
	revocation service.RevocationStore
	users      service.UserAuthenticator
	scheduler  CleanupScheduler
	log        logger.Logger

	refreshTTLSeconds int
}

// NewAuthHandler creates the auth endpoints handler. refreshTTLSeconds bounds
// the refresh cookie lifetime; scheduler may be nil.
func NewAuthHandler(tokens service.TokenService, revocation service.RevocationStore,
	users service.UserAuthenticator, scheduler CleanupScheduler,
	refreshTTLSeconds int, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:            tokens,
		revocation:        revocation,
		users:             users,
		scheduler:         scheduler,
		log:               log.WithComponent("auth_handler"),
		refreshTTLSeconds: refreshTTLSeconds,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login checks credentials against the user module, issues the token pair, and
// plants the refresh token in an HttpOnly cookie scoped to the refresh route.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Err(400, "invalid request body"))
		return
	}

	userID, role, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, dto.Err(401, "invalid credentials"))
		return
	}

	access, refresh, err := h.tokens.IssueTokenPair(userID, req.Username, role)
	if err != nil {
		h.log.Error(c.Request.Context(), "failed to issue token pair", err)
		c.JSON(http.StatusInternalServerError, dto.Err(500, "internal error"))
		return
	}

	// Both tokens join the user's active set so "log out everywhere" can reach them.
	h.revocation.Track(c.Request.Context(), access)
	h.revocation.Track(c.Request.Context(), refresh)

	if h.scheduler != nil {
		// Prune lapsed ids from the active set once this login's tokens start expiring.
		if err := h.scheduler.ScheduleUserCleanup(c.Request.Context(), userID); err != nil {
			h.log.Warn(c.Request.Context(), "failed to schedule token cleanup", logger.Error(err))
		}
	}

	h.setRefreshCookie(c, refresh, h.refreshTTLSeconds)
	c.JSON(http.StatusOK, dto.OK(tokenResponse{AccessToken: access}))
}

// Refresh rotates the token pair. The middleware has already authenticated the
// refresh cookie; the old refresh token is blacklisted so it cannot be replayed.
func (h *AuthHandler) Refresh(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.TokenType != constants.TokenTypeRefresh {
		c.JSON(http.StatusUnauthorized, dto.Err(401, "refresh token required"))
		return
	}

	oldRefresh, _ := c.Cookie(constants.RefreshTokenCookie)

	access, refresh, err := h.tokens.IssueTokenPair(principal.UserID, principal.Username, principal.Role)
	if err != nil {
		h.log.Error(c.Request.Context(), "failed to rotate token pair", err)
		c.JSON(http.StatusInternalServerError, dto.Err(500, "internal error"))
		return
	}

	if oldRefresh != "" {
		h.revocation.Blacklist(c.Request.Context(), oldRefresh)
		h.revocation.Untrack(c.Request.Context(), oldRefresh)
	}
	h.revocation.Track(c.Request.Context(), access)
	h.revocation.Track(c.Request.Context(), refresh)

	h.setRefreshCookie(c, refresh, h.refreshTTLSeconds)
	c.JSON(http.StatusOK, dto.OK(tokenResponse{AccessToken: access}))
}

// Logout revokes the presented access token and clears the refresh cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := c.GetHeader(constants.HeaderAccessToken); token != "" {
		h.revocation.Blacklist(c.Request.Context(), token)
		h.revocation.Untrack(c.Request.Context(), token)
	} else if token := c.GetHeader(constants.HeaderAccessTokenLegacy); token != "" {
		h.revocation.Blacklist(c.Request.Context(), token)
		h.revocation.Untrack(c.Request.Context(), token)
	}

	if refresh, err := c.Cookie(constants.RefreshTokenCookie); err == nil && refresh != "" {
		h.revocation.Blacklist(c.Request.Context(), refresh)
		h.revocation.Untrack(c.Request.Context(), refresh)
	}

	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, dto.OK(nil))
}

// LogoutAll revokes every active token of the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Err(401, "unauthorized"))
		return
	}

	if err := h.revocation.RevokeAllForUser(c.Request.Context(), principal.UserID); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			c.JSON(appErr.HTTPStatus, dto.Err(appErr.Code, appErr.Message))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.Err(500, "internal error"))
		return
	}

	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, dto.OK(nil))
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(constants.RefreshTokenCookie, value, maxAge, constants.RefreshEndpointPath, "", true, true)
}
