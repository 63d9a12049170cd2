package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type TargetHandler struct {
	targetService *services.TargetService
}

func NewTargetHandler(targetService *services.TargetService) *TargetHandler {
	return &TargetHandler{targetService: targetService}
}

// GET /api/targets
func (h *TargetHandler) List(c *gin.Context) {
	var req services.TargetListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.targetService.List(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paged(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// GET /api/targets/:id
func (h *TargetHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	target, err := h.targetService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, target)
}

// Create sets the yearly target of an indicator and links existing data.
// POST /api/targets
func (h *TargetHandler) Create(c *gin.Context) {
	var req services.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.targetService.Create(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, change)
}

// Update edits a target. An approved target drops back to draft.
// PUT /api/targets/:id
func (h *TargetHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.targetService.Update(middleware.GetPrincipal(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, change)
}

// DELETE /api/targets/:id
func (h *TargetHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.targetService.Delete(middleware.GetPrincipal(c), id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "target deleted successfully"})
}

// POST /api/targets/:id/submit
func (h *TargetHandler) Submit(c *gin.Context) {
	runAction(c, withoutReason(h.targetService.Submit))
}

// POST /api/targets/:id/approve
func (h *TargetHandler) Approve(c *gin.Context) {
	runAction(c, withoutReason(h.targetService.Approve))
}

// POST /api/targets/:id/reject
func (h *TargetHandler) Reject(c *gin.Context) {
	runAction(c, h.targetService.Reject)
}

// POST /api/targets/:id/request-revision
func (h *TargetHandler) RequestRevision(c *gin.Context) {
	runAction(c, h.targetService.RequestRevision)
}
