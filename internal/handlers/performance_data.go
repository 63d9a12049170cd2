package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type PerformanceDataHandler struct {
	dataService *services.PerformanceDataService
}

func NewPerformanceDataHandler(dataService *services.PerformanceDataService) *PerformanceDataHandler {
	return &PerformanceDataHandler{dataService: dataService}
}

// GET /api/performance-data
func (h *PerformanceDataHandler) List(c *gin.Context) {
	var req services.PerformanceDataListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.dataService.List(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paged(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// GET /api/performance-data/:id
func (h *PerformanceDataHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	data, err := h.dataService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}

// Create records an actual value; percentage and category are derived.
// POST /api/performance-data
func (h *PerformanceDataHandler) Create(c *gin.Context) {
	var req services.CreatePerformanceDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.dataService.Create(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, change)
}

// PUT /api/performance-data/:id
func (h *PerformanceDataHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdatePerformanceDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.dataService.Update(middleware.GetPrincipal(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, change)
}

// DELETE /api/performance-data/:id
func (h *PerformanceDataHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.dataService.Delete(middleware.GetPrincipal(c), id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "performance data deleted successfully"})
}

// POST /api/performance-data/:id/submit
func (h *PerformanceDataHandler) Submit(c *gin.Context) {
	runAction(c, withoutReason(h.dataService.Submit))
}

// POST /api/performance-data/:id/validate
func (h *PerformanceDataHandler) Validate(c *gin.Context) {
	runAction(c, withoutReason(h.dataService.Validate))
}

// POST /api/performance-data/:id/reject
func (h *PerformanceDataHandler) Reject(c *gin.Context) {
	runAction(c, h.dataService.Reject)
}
