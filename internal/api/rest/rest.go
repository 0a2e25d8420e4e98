package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/pixelatlas/conquest-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Ownership transfer (trusted backend callers, API key)
		v1.POST("/territories/transfer", middleware.APIKeyAuth(authCfg), handler.Transfer)

		// Administrative transfer (operator JWT)
		v1.POST("/admin/territories/transfer", middleware.JWTAuth(authCfg), handler.AdminTransfer)

		// Start auction (backend API key or operator JWT)
		v1.POST("/auctions", middleware.Auth(authCfg), handler.StartAuction)
	}

	// Scheduled sweep endpoints (shared-secret bearer from the scheduler)
	sweeps := router.Group("/internal/sweeps", middleware.SweepAuth(authCfg))
	{
		sweeps.POST("/lifecycle", handler.RunLifecycleSweep)
		sweeps.POST("/settlement", handler.RunSettlementSweep)
		sweeps.POST("/rankings", handler.RunRankingSweep)
	}
}
