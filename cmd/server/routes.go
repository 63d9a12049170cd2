package main

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/kwanter/sakip-sub003/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices, cfg *config.ServerConfig) {
	r.Use(logger.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.Metrics())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.Origins))

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", middleware.PrometheusHandler())

	reviewers := middleware.RoleRequired(workflow.RoleAdmin, workflow.RoleApprover)
	editors := middleware.RoleRequired(workflow.RoleAdmin, workflow.RoleOperator)

	api := r.Group("/api", svc.limiter.Middleware(), middleware.AuditFailures(svc.logs))
	{
		// Auth routes (public)
		api.POST("/auth/login", svc.authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.PUT("/auth/password", svc.authHandler.ChangePassword)

			protected.GET("/dashboard", svc.dashboardHandler.GetStats)

			protected.GET("/institutions", svc.institutionHandler.List)
			protected.GET("/institutions/:id", svc.institutionHandler.GetByID)

			// Indicators
			protected.GET("/indicators", svc.indicatorHandler.List)
			protected.GET("/indicators/:id", svc.indicatorHandler.GetByID)
			protected.GET("/indicators/:id/metrics", svc.indicatorHandler.Metrics)
			protected.POST("/indicators", editors, svc.indicatorHandler.Create)
			protected.PUT("/indicators/:id", editors, svc.indicatorHandler.Update)
			protected.DELETE("/indicators/:id", editors, svc.indicatorHandler.Delete)

			// Targets; the workflow machine checks roles per action
			protected.GET("/targets", svc.targetHandler.List)
			protected.GET("/targets/:id", svc.targetHandler.GetByID)
			protected.POST("/targets", svc.targetHandler.Create)
			protected.PUT("/targets/:id", svc.targetHandler.Update)
			protected.DELETE("/targets/:id", svc.targetHandler.Delete)
			protected.POST("/targets/:id/submit", svc.targetHandler.Submit)
			protected.POST("/targets/:id/approve", svc.targetHandler.Approve)
			protected.POST("/targets/:id/reject", svc.targetHandler.Reject)
			protected.POST("/targets/:id/request-revision", svc.targetHandler.RequestRevision)

			// Performance data
			protected.GET("/performance-data", svc.dataHandler.List)
			protected.GET("/performance-data/:id", svc.dataHandler.GetByID)
			protected.POST("/performance-data", svc.dataHandler.Create)
			protected.PUT("/performance-data/:id", svc.dataHandler.Update)
			protected.DELETE("/performance-data/:id", svc.dataHandler.Delete)
			protected.POST("/performance-data/:id/submit", svc.dataHandler.Submit)
			protected.POST("/performance-data/:id/validate", svc.dataHandler.Validate)
			protected.POST("/performance-data/:id/reject", svc.dataHandler.Reject)

			// Assessments
			protected.GET("/assessment-criteria", svc.assessmentHandler.ListCriteria)
			protected.GET("/assessments", svc.assessmentHandler.List)
			protected.GET("/assessments/:id", svc.assessmentHandler.GetByID)
			protected.POST("/assessments", svc.assessmentHandler.Create)
			protected.PUT("/assessments/:id", svc.assessmentHandler.Update)
			protected.DELETE("/assessments/:id", svc.assessmentHandler.Delete)
			protected.POST("/assessments/:id/submit", svc.assessmentHandler.Submit)
			protected.POST("/assessments/:id/approve", svc.assessmentHandler.Approve)
			protected.POST("/assessments/:id/reject", svc.assessmentHandler.Reject)
			protected.POST("/assessments/:id/request-revision", svc.assessmentHandler.RequestRevision)

			// Reports
			protected.GET("/reports", svc.reportHandler.List)
			protected.GET("/reports/:id", svc.reportHandler.GetByID)
			protected.POST("/reports", svc.reportHandler.Create)
			protected.PUT("/reports/:id", svc.reportHandler.Update)
			protected.DELETE("/reports/:id", svc.reportHandler.Delete)
			protected.POST("/reports/:id/refresh", svc.reportHandler.Refresh)
			protected.POST("/reports/:id/submit", svc.reportHandler.Submit)
			protected.POST("/reports/:id/approve", svc.reportHandler.Approve)
			protected.POST("/reports/:id/reject", svc.reportHandler.Reject)

			// Scores
			protected.GET("/scores", svc.scoreHandler.List)
			protected.GET("/scores/:id", svc.scoreHandler.GetByIndicator)
			protected.POST("/scores/recalculate", reviewers, svc.scoreHandler.Recalculate)

			protected.GET("/system-logs/history/:entity_type/:id", svc.systemLogHandler.History)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/institutions", svc.institutionHandler.Create)

			admin.GET("/users", svc.userHandler.List)
			admin.POST("/users", svc.userHandler.Create)
			admin.PUT("/users/:id", svc.userHandler.Update)

			admin.POST("/assessment-criteria", svc.assessmentHandler.CreateCriterion)
			admin.PUT("/assessment-criteria/:id", svc.assessmentHandler.UpdateCriterion)

			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
			admin.GET("/system-logs/retention", svc.systemLogHandler.GetRetention)
			admin.PUT("/system-logs/retention", svc.systemLogHandler.SetRetention)
			admin.POST("/system-logs/cleanup", svc.systemLogHandler.Cleanup)

			admin.GET("/system-config", svc.configHandler.ListGroup)
			admin.GET("/system-config/:key", svc.configHandler.Get)
			admin.PUT("/system-config/:key", svc.configHandler.Set)
		}
	}
}
