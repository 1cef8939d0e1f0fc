package main

import (
	"database/sql"
	"net/http"
	"time"

	"dialplane/internal/auth"
	"dialplane/internal/calls"
	"dialplane/internal/numbers"
	"dialplane/internal/webhook"
	"dialplane/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	AuthMW  gin.HandlerFunc
	Webhook webhook.Handler
	Numbers numbers.Handlers
	Calls   calls.Handlers

	DB    *sql.DB
	Redis *redis.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := d.Redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Platform webhooks (public; authenticated by per-delivery body signature).
	r.POST("/webhooks/platform", d.Webhook.Receive)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.AuthMW)
	{
		// NUMBER routes (mutations require the operator role)
		nums := v1.Group("/numbers")
		{
			nums.GET("", d.Numbers.List)
			nums.GET("/:binding_id", d.Numbers.Get)

			mut := nums.Group("")
			mut.Use(auth.RequireAnyRole(auth.RoleOperator))
			{
				mut.POST("", d.Numbers.Provision)
				mut.DELETE("/:binding_id", d.Numbers.Deprovision)
				mut.PUT("/:binding_id/agent", d.Numbers.BindAgent)
				mut.PUT("/:binding_id/enabled", d.Numbers.SetEnabled)
				mut.PUT("/:binding_id/overrides", d.Numbers.SetOverrides)
			}
		}

		// CALL routes (read-only)
		callsGroup := v1.Group("/calls")
		callsGroup.Use(auth.RequireAnyRole(auth.RoleOperator, auth.RoleViewer))
		{
			callsGroup.GET("", d.Calls.ListRecent)
			callsGroup.GET("/:room", d.Calls.GetByRoom)
		}
	}
}
