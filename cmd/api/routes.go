package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"homeservices-platform/internal/auth"
	"homeservices-platform/internal/calls"
	"homeservices-platform/internal/httpapi"
	"homeservices-platform/internal/notify"
	"homeservices-platform/internal/rbac"
	"homeservices-platform/internal/realtime"
	"homeservices-platform/internal/realtime/ws"
	"homeservices-platform/internal/reporting"
	"homeservices-platform/pkg/utils"
)

type registerDeps struct {
	auth      *auth.Manager
	realtime  *realtime.Service
	calls     *calls.Service
	reporting *reporting.Service
	notify    *notify.Scheduler
	db        *sql.DB
	redis     *redis.Client
	log       *slog.Logger
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	h := httpapi.Handlers{
		Auth:      deps.auth,
		Calls:     deps.calls,
		Reporting: deps.reporting,
		Notify:    deps.notify,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Websocket endpoint. Auth happens in-band (authenticate event) or via a
	// bearer token at upgrade time.
	ws.NewHandler(deps.realtime, deps.log).Register(r)

	// Token issuance (public).
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
		})

		// CALLS routes
		callsGroup := v1.Group("/calls")
		{
			callsGroup.POST("", h.InitiateCall)
			callsGroup.GET("", h.ListCalls)
			callsGroup.GET("/:call_id", h.GetCall)
			callsGroup.PATCH("/:call_id/status", h.UpdateCallStatus)
			callsGroup.PATCH("/:call_id/details",
				rbac.RequireAnyRole(rbac.RoleProvider), h.UpdateCallDetails)
		}

		// REPORTING routes (admin only)
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			reports.GET("/calls", h.CallsSummary)
			reports.GET("/deliveries", h.DeliverySummary)
		}

		// NOTIFICATION routes (admin only)
		notifications := v1.Group("/admin/notifications")
		notifications.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			notifications.POST("", h.SendNotification)
			notifications.DELETE("/:envelope_id", h.CancelNotification)
		}
	}
}
