package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetStats returns dashboard statistics
// GET /api/dashboard?year=&institution_id=
func (h *DashboardHandler) GetStats(c *gin.Context) {
	var req services.DashboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	stats, err := h.dashboardService.GetStats(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, stats)
}
