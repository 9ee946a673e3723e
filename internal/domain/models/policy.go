package models

import (
	"time"

	"github.com/oljc/arcoserve/pkg/constants"
)

// RateLimitPolicy declares the sliding-window limit attached to a route.
// Policies are plain data built once at route registration; there is no runtime
// lookup or cache.
type RateLimitPolicy struct {
	// Limit is the number of requests allowed inside the window.
	Limit int
	// Window is the trailing time span the limit applies to.
	Window time.Duration
	// ByIP mixes the client IP into the limiting key.
	ByIP bool
	// ByDevice mixes the device fingerprint into the limiting key.
	ByDevice bool
	// ByUser mixes the access token into the limiting key.
	ByUser bool
	// Message is the caller-visible denial message.
	Message string
}

// DefaultRateLimitPolicy mirrors the original annotation defaults: 10 requests
// per minute keyed by IP and device.
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		Limit:    10,
		Window:   time.Minute,
		ByIP:     true,
		ByDevice: true,
		Message:  "too many requests, please retry later",
	}
}

// SignaturePolicy declares whether a route requires a signed request and how old
// a signature may be.
type SignaturePolicy struct {
	Required bool
	MaxAge   time.Duration
}

// DefaultSignaturePolicy requires a signature no older than the default window.
func DefaultSignaturePolicy() SignaturePolicy {
	return SignaturePolicy{Required: true, MaxAge: constants.SignDefaultMaxAge}
}
