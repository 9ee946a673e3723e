// Package middleware implements the per-request authentication chain:
// rate limit, then signature verification, then token authentication. Each
// stage may short-circuit with a structured error; stages never share mutable
// state, all cross-request coordination lives in the store.
package middleware

import (
	"bytes"
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oljc/arcoserve/internal/application/dto"
	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
)

// SetPrincipal attaches the authenticated principal to the request context.
func SetPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(constants.ContextKeyPrincipal, p)
}

// GetPrincipal returns the authenticated principal, if any.
func GetPrincipal(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(constants.ContextKeyPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok
}

// RequestID assigns a request id and threads it through the request context so
// log entries correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(constants.ContextKeyRequestID, id)
		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id) //nolint:staticcheck // string key is the process-wide convention
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// readBody drains the request body and restores it so downstream handlers can
// read it again. Signature verification needs the raw bytes.
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// abortWithError translates an AppError into the response envelope and stops
// the chain. Unknown errors collapse to an opaque internal error; no stack or
// store detail ever reaches the caller.
func abortWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.ErrInternal
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, dto.Err(appErr.Code, appErr.Message))
}
