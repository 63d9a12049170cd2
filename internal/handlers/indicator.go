package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type IndicatorHandler struct {
	indicatorService *services.IndicatorService
	dataService      *services.PerformanceDataService
}

func NewIndicatorHandler(indicatorService *services.IndicatorService, dataService *services.PerformanceDataService) *IndicatorHandler {
	return &IndicatorHandler{indicatorService: indicatorService, dataService: dataService}
}

// List returns paginated indicators
// GET /api/indicators
func (h *IndicatorHandler) List(c *gin.Context) {
	var req services.IndicatorListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.indicatorService.List(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paged(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// GetByID returns an indicator by ID
// GET /api/indicators/:id
func (h *IndicatorHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	indicator, err := h.indicatorService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, indicator)
}

// Create creates a new indicator
// POST /api/indicators
func (h *IndicatorHandler) Create(c *gin.Context) {
	var req services.CreateIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	indicator, err := h.indicatorService.Create(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, indicator)
}

// Update updates an indicator
// PUT /api/indicators/:id
func (h *IndicatorHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	indicator, err := h.indicatorService.Update(middleware.GetPrincipal(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, indicator)
}

// Delete deletes an indicator without performance data
// DELETE /api/indicators/:id
func (h *IndicatorHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.indicatorService.Delete(middleware.GetPrincipal(c), id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "indicator deleted successfully"})
}

// Metrics returns the yearly aggregate, improvement and trend
// GET /api/indicators/:id/metrics?year=
func (h *IndicatorHandler) Metrics(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	year, ok := parseYear(c)
	if !ok {
		return
	}

	metrics, err := h.dataService.Metrics(id, year)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, metrics)
}
