// Package adminapi implements the HTTP handlers: gateway webhook ingestion,
// the dashboard CRUD surface and the operational endpoints.
package adminapi

import (
	"github.com/Otitodev/wa-assist/config"
	"github.com/Otitodev/wa-assist/internal/gateway"
	"github.com/Otitodev/wa-assist/internal/ingest"
)

// Deps carries everything the handlers need beyond the request-scoped DB.
type Deps struct {
	Config   *config.AppConfig
	Pipeline *ingest.Pipeline
	Sweeper  *ingest.Sweeper
	Sessions ingest.SessionRegistry
	Gateway  *gateway.Client
	Bus      ingest.Notifier
}

var deps *Deps

// Init stores the handler dependencies and registers every route on the
// running web server.
func Init(d *Deps) {
	deps = d
	registerWebhookRoutes()
	registerAuthRoutes()
	registerTenantRoutes()
	registerSessionRoutes()
	registerEventRoutes()
	registerGatewayRoutes()
	registerSweepRoutes()
	registerHealthRoutes()
	registerMetricsRoutes()
}
