package main

import (
	"context"
	"log/slog"

	"notes-api/internal/graph"
	"notes-api/internal/httpapi"
	"notes-api/pkg/logger"
	"notes-api/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	log     *slog.Logger
	graphql *graph.Handler
	health  func(context.Context) error

	// inflight is nil when REDIS_ADDR is unset.
	inflight *utils.InflightCap
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(d.log))
	r.Use(httpapi.SecurityHeaders())
	r.Use(httpapi.CORS())

	r.GET("/", httpapi.Hello)
	r.GET("/healthz", httpapi.Health(d.health))

	api := r.Group("/api")
	api.Use(httpapi.ConcurrencyCap(d.inflight))
	d.graphql.Mount(api, "")
}
