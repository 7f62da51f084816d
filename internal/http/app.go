// Package http defines what the router needs from the composition root and
// the contract every routed module implements.
package http

import (
	"context"

	"agency_portal_backend/platform/config"
	"agency_portal_backend/platform/logger"
)

type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /health; a failing Ping turns it into 503.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is everything router.New needs. Modules are mounted in slice order.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
