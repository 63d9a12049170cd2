package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// List returns paginated reports
// GET /api/reports
func (h *ReportHandler) List(c *gin.Context) {
	var req services.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.reportService.List(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paged(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// GetByID returns a report with its per-indicator breakdown
// GET /api/reports/:id
func (h *ReportHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.reportService.Detail(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, detail)
}

// Create builds a report from the validated data of its period
// POST /api/reports
func (h *ReportHandler) Create(c *gin.Context) {
	var req services.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.reportService.Create(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, report)
}

// PUT /api/reports/:id
func (h *ReportHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.reportService.Update(middleware.GetPrincipal(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, change)
}

// Refresh recomputes the summary statistics
// POST /api/reports/:id/refresh
func (h *ReportHandler) Refresh(c *gin.Context) {
	runAction(c, func(p services.Principal, id uint, _ string) (*services.ReportChange, error) {
		return h.reportService.Refresh(p, id)
	})
}

// DELETE /api/reports/:id
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.Delete(middleware.GetPrincipal(c), id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "report deleted successfully"})
}

func (h *ReportHandler) Submit(c *gin.Context) {
	runAction(c, withoutReason(h.reportService.Submit))
}

func (h *ReportHandler) Approve(c *gin.Context) {
	runAction(c, withoutReason(h.reportService.Approve))
}

func (h *ReportHandler) Reject(c *gin.Context) {
	runAction(c, h.reportService.Reject)
}
