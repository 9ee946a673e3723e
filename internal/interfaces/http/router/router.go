// Package router assembles the gin engine and the static route policy table.
// Policies are resolved once here, at registration time; nothing is looked up
// or cached per request.
package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/infrastructure/monitoring"
	"github.com/oljc/arcoserve/internal/infrastructure/signing"
	"github.com/oljc/arcoserve/internal/interfaces/http/handlers"
	"github.com/oljc/arcoserve/internal/interfaces/http/middleware"
	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/logger"
)

// Policies bundles the per-route middleware configuration. A nil field falls
// back to the enclosing group's policy, then to the system default.
type Policies struct {
	RateLimit *models.RateLimitPolicy
	Signature *models.SignaturePolicy
}

// Route binds a handler to its method, path and resolved policies.
type Route struct {
	Method   string
	Path     string
	Policies Policies
	Handler  gin.HandlerFunc
	// Extra middleware that runs after the policy chain, e.g. RequirePrincipal.
	Extra []gin.HandlerFunc
}

// Deps carries everything the router needs to assemble the middleware chain.
type Deps struct {
	Atomic           service.AtomicStore
	Tokens           service.TokenService
	Revocation       service.RevocationStore
	Signer           *signing.Signer
	Auth             *handlers.AuthHandler
	Health           *handlers.HealthHandler
	Metrics          *monitoring.Metrics
	Log              logger.Logger
	RateLimitEnabled bool
	EnablePprof      bool
	// SignMaxAge bounds the age of accepted signatures; zero means the default.
	SignMaxAge time.Duration
	// DefaultRateLimit overrides the built-in auth-route limit when Limit > 0.
	DefaultRateLimit models.RateLimitPolicy
}

// New builds the engine with the fixed middleware order: rate limit, then
// signature check, then token authentication, then the handler.
func New(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			constants.HeaderDate,
			constants.HeaderFingerprint,
			constants.HeaderAuthorization,
			constants.HeaderAccessToken,
			constants.HeaderAccessTokenLegacy,
		},
		ExposeHeaders: []string{"X-Request-Id"},
	}))
	if deps.Metrics != nil {
		engine.Use(middleware.Observe(deps.Metrics))
	}

	engine.GET("/health", deps.Health.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.EnablePprof {
		pprof.Register(engine)
	}

	signMaxAge := deps.SignMaxAge
	if signMaxAge <= 0 {
		signMaxAge = constants.SignDefaultMaxAge
	}

	authLimit := deps.DefaultRateLimit
	if authLimit.Limit <= 0 {
		authLimit = models.DefaultRateLimitPolicy()
	}
	authLimit.Message = "too many auth attempts, please retry later"

	// Group-level defaults mirror the original controller annotations: auth
	// endpoints are tightly limited, and every /api route is signed unless the
	// route says otherwise.
	authDefaults := Policies{
		RateLimit: &authLimit,
		Signature: &models.SignaturePolicy{Required: true, MaxAge: signMaxAge},
	}
	apiDefaults := Policies{
		Signature: &models.SignaturePolicy{Required: true, MaxAge: signMaxAge},
	}

	authRoutes := []Route{
		{Method: "POST", Path: "/api/auth/login", Handler: deps.Auth.Login},
		{Method: "POST", Path: "/api/auth/refresh", Handler: deps.Auth.Refresh},
		{Method: "POST", Path: "/api/auth/logout", Handler: deps.Auth.Logout},
		{
			Method:  "POST",
			Path:    "/api/auth/logout-all",
			Handler: deps.Auth.LogoutAll,
			Extra:   []gin.HandlerFunc{middleware.RequirePrincipal(constants.TokenTypeAccess)},
		},
	}
	for _, route := range authRoutes {
		deps.register(engine, route, authDefaults)
	}

	apiRoutes := []Route{
		{
			Method: "GET",
			Path:   "/api/ping",
			Policies: Policies{
				RateLimit: &models.RateLimitPolicy{
					Limit: 30, Window: time.Minute,
					ByIP:    true,
					Message: "too many requests",
				},
				// Public probe: the route-level policy turns the group's
				// signature requirement off.
				Signature: &models.SignaturePolicy{Required: false},
			},
			Handler: handlers.Ping,
		},
		{
			Method: "GET",
			Path:   "/api/me",
			Policies: Policies{
				RateLimit: &models.RateLimitPolicy{
					Limit: 60, Window: time.Minute,
					ByIP: true, ByDevice: true, ByUser: true,
					Message: "too many requests",
				},
			},
			Handler: handlers.Me,
			Extra:   []gin.HandlerFunc{middleware.RequirePrincipal(constants.TokenTypeAccess)},
		},
	}
	for _, route := range apiRoutes {
		deps.register(engine, route, apiDefaults)
	}

	return engine
}

// register resolves the route's policies against the group defaults and
// installs the middleware chain in the fixed order: rate limit, then signature
// check, then token authentication, then any route extras, then the handler.
func (d *Deps) register(engine *gin.Engine, route Route, groupDefaults Policies) {
	resolved := resolve(route.Policies, groupDefaults)

	chain := make([]gin.HandlerFunc, 0, 5)
	if d.RateLimitEnabled && resolved.RateLimit != nil {
		chain = append(chain, middleware.RateLimit(d.Atomic, *resolved.RateLimit, d.Metrics, d.Log))
	}
	if resolved.Signature != nil && resolved.Signature.Required {
		chain = append(chain, middleware.SignatureCheck(d.Signer, *resolved.Signature, d.Metrics, d.Log))
	}
	chain = append(chain, middleware.TokenAuth(d.Tokens, d.Revocation, d.Metrics, d.Log))
	chain = append(chain, route.Extra...)
	chain = append(chain, route.Handler)

	engine.Handle(route.Method, route.Path, chain...)
}

// resolve implements route-over-group precedence. The system default is "no
// rate limit, no signature", so absent policies cost nothing per request.
func resolve(route, group Policies) Policies {
	resolved := route
	if resolved.RateLimit == nil {
		resolved.RateLimit = group.RateLimit
	}
	if resolved.Signature == nil {
		resolved.Signature = group.Signature
	}
	return resolved
}
