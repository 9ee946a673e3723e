package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/internal/infrastructure/monitoring"
	"github.com/oljc/arcoserve/internal/infrastructure/signing"
	"github.com/oljc/arcoserve/pkg/errors"
	"github.com/oljc/arcoserve/pkg/logger"
)

// SignatureCheck verifies the request's HMAC signature under the route policy.
// Verification is a pure function of request, credential and clock; any store
// or parse trouble fails closed.
func SignatureCheck(signer *signing.Signer, policy models.SignaturePolicy, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.Required {
			c.Next()
			return
		}

		body, err := readBody(c)
		if err != nil {
			abortWithError(c, errors.Internal(err))
			return
		}

		if err := signer.Verify(c.Request, body, policy.MaxAge); err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				if metrics != nil {
					metrics.SignatureFailures.WithLabelValues(string(appErr.Kind)).Inc()
				}
				log.Warn(c.Request.Context(), "signature verification failed",
					logger.String("kind", string(appErr.Kind)),
					logger.String("path", c.Request.URL.Path))
			}
			abortWithError(c, err)
			return
		}

		c.Next()
	}
}
