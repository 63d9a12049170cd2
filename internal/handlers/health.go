package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"gorm.io/gorm"
)

// HealthHandler reports database reachability and the queue mode.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, queue: queue}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var pending int64
	if dbStatus == "ok" {
		h.db.Model(&models.PerformanceData{}).Where("status = ?", workflow.StatusSubmitted).Count(&pending)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "sakip",
		"components": gin.H{
			"database":           dbStatus,
			"queue_mode":         queueMode,
			"pending_validation": pending,
		},
	})
}
