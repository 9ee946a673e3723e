package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oljc/arcoserve/internal/application/dto"
	"github.com/oljc/arcoserve/internal/interfaces/http/middleware"
)

// Ping is the public liveness probe for API consumers. It carries a rate-limit
// policy but no signature requirement.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OK(gin.H{"message": "pong"}))
}

// Me echoes the authenticated principal. It doubles as the reference route for
// a fully protected endpoint: rate limited, signed, and token authenticated.
func Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Err(401, "unauthorized"))
		return
	}
	c.JSON(http.StatusOK, dto.OK(principal))
}
