package middleware

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/infrastructure/monitoring"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
	"github.com/oljc/arcoserve/pkg/logger"
)

// RateLimit enforces the route's sliding-window policy. The limiting key mixes
// path with the policy-selected request dimensions and is hashed so arbitrary
// header content never lands in a store key.
func RateLimit(store service.AtomicStore, policy models.RateLimitPolicy, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := buildLimitKey(c, policy)

		result, err := store.SlidingWindowLimit(c.Request.Context(), key, policy.Window, policy.Limit)
		if err != nil {
			log.Error(c.Request.Context(), "rate limiter unavailable", err,
				logger.String("path", c.Request.URL.Path))
			abortWithError(c, errors.Internal(err))
			return
		}

		if !result.Allowed {
			if metrics != nil {
				metrics.RateLimitDenials.WithLabelValues(c.FullPath()).Inc()
			}
			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("path", c.Request.URL.Path),
				logger.Int("limit", policy.Limit))
			abortWithError(c, errors.ErrRateLimited.WithMessage(policy.Message))
			return
		}

		c.Next()
	}
}

// buildLimitKey folds the selected dimensions into an md5-hashed key under the
// rate-limit prefix.
func buildLimitKey(c *gin.Context, policy models.RateLimitPolicy) string {
	var b strings.Builder
	b.WriteString(c.Request.URL.Path)

	if policy.ByIP {
		b.WriteString(":")
		b.WriteString(c.GetHeader(constants.HeaderRealIP))
	}
	if policy.ByDevice {
		b.WriteString(":")
		b.WriteString(c.GetHeader(constants.HeaderFingerprint))
	}
	if policy.ByUser {
		b.WriteString(":")
		b.WriteString(accessTokenFromRequest(c))
	}

	sum := md5.Sum([]byte(b.String()))
	return constants.KeyPrefixRateLimit + hex.EncodeToString(sum[:])
}
