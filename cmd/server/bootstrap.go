package main

import (
	"fmt"

	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/handlers"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/internal/utils"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	db        *gorm.DB
	logs      *services.SystemLogService
	auth      *services.AuthService
	scores    *services.ScoreService
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.Scheduler
	limiter   *middleware.RateLimiter

	authHandler        *handlers.AuthHandler
	institutionHandler *handlers.InstitutionHandler
	userHandler        *handlers.UserHandler
	indicatorHandler   *handlers.IndicatorHandler
	targetHandler      *handlers.TargetHandler
	dataHandler        *handlers.PerformanceDataHandler
	assessmentHandler  *handlers.AssessmentHandler
	reportHandler      *handlers.ReportHandler
	scoreHandler       *handlers.ScoreHandler
	dashboardHandler   *handlers.DashboardHandler
	systemLogHandler   *handlers.SystemLogHandler
	configHandler      *handlers.SystemConfigHandler
	healthHandler      *handlers.HealthHandler
}

// wire builds every service and handler on top of db. The queue decides
// where score recalculations run.
func wire(db *gorm.DB, cfg *config.Config, queue services.TaskQueue) *appServices {
	machine := workflow.NewMachine(nil)
	logs := services.NewSystemLogService(db)
	scores := services.NewScoreService(db, logs)
	if syncQueue, ok := queue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(scores.ProcessTask)
	}

	auth := services.NewAuthService(db, &cfg.JWT, logs)
	indicators := services.NewIndicatorService(db, logs)
	data := services.NewPerformanceDataService(db, machine, logs, queue)

	return &appServices{
		db:        db,
		logs:      logs,
		auth:      auth,
		scores:    scores,
		taskQueue: queue,
		limiter:   middleware.NewRateLimiter(float64(cfg.Server.RateLimit), cfg.Server.RateBurst),

		authHandler:        handlers.NewAuthHandler(auth),
		institutionHandler: handlers.NewInstitutionHandler(services.NewInstitutionService(db, logs)),
		userHandler:        handlers.NewUserHandler(services.NewUserService(db, logs)),
		indicatorHandler:   handlers.NewIndicatorHandler(indicators, data),
		targetHandler:      handlers.NewTargetHandler(services.NewTargetService(db, machine, logs)),
		dataHandler:        handlers.NewPerformanceDataHandler(data),
		assessmentHandler:  handlers.NewAssessmentHandler(services.NewAssessmentService(db, machine, logs)),
		reportHandler:      handlers.NewReportHandler(services.NewReportService(db, machine, logs)),
		scoreHandler:       handlers.NewScoreHandler(scores, queue),
		dashboardHandler:   handlers.NewDashboardHandler(services.NewDashboardService(db)),
		systemLogHandler:   handlers.NewSystemLogHandler(logs),
		configHandler:      handlers.NewSystemConfigHandler(services.NewSystemConfigService(db)),
		healthHandler:      handlers.NewHealthHandler(db, queue),
	}
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) (*appServices, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)
	services.RegisterMetrics()
	middleware.RegisterHTTPMetrics()

	db, err := models.InitDB(&cfg.Database, cfg.Log.Level == "debug")
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	svc := wire(db, cfg, services.NewTaskQueue(cfg))

	if err := svc.auth.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	if svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis)
		if svc.worker != nil {
			svc.worker.SetProcessor(svc.scores.ProcessTask)
			if err := svc.worker.Start(); err != nil {
				return nil, fmt.Errorf("start worker: %w", err)
			}
		}
	}

	if cfg.Scoring.SchedulerEnabled {
		svc.scheduler = services.NewScheduler(db, svc.scores, svc.logs, cfg.Scoring)
		if err := svc.scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start scheduler: %w", err)
		}
	}

	return svc, nil
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		logger.Info().Msg("Scheduler stopped")
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if s.limiter != nil {
		s.limiter.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
