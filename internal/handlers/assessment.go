package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type AssessmentHandler struct {
	assessmentService *services.AssessmentService
}

func NewAssessmentHandler(assessmentService *services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

// ListCriteria returns the rubric. ?active=true hides retired criteria.
// GET /api/assessment-criteria
func (h *AssessmentHandler) ListCriteria(c *gin.Context) {
	criteria, err := h.assessmentService.ListCriteria(c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, criteria)
}

// POST /api/assessment-criteria
func (h *AssessmentHandler) CreateCriterion(c *gin.Context) {
	var req services.CreateCriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	criterion, err := h.assessmentService.CreateCriterion(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, criterion)
}

// PUT /api/assessment-criteria/:id
func (h *AssessmentHandler) UpdateCriterion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateCriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	criterion, err := h.assessmentService.UpdateCriterion(middleware.GetPrincipal(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, criterion)
}

// GET /api/assessments
func (h *AssessmentHandler) List(c *gin.Context) {
	var req services.AssessmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.assessmentService.List(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Paged(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// GET /api/assessments/:id
func (h *AssessmentHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, assessment)
}

// Create grades a validated data point against the rubric.
// POST /api/assessments
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req services.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.assessmentService.Create(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, change)
}

// PUT /api/assessments/:id
func (h *AssessmentHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.assessmentService.Update(middleware.GetPrincipal(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, change)
}

// DELETE /api/assessments/:id
func (h *AssessmentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.assessmentService.Delete(middleware.GetPrincipal(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "assessment deleted successfully"})
}

func (h *AssessmentHandler) Submit(c *gin.Context) {
	runAction(c, withoutReason(h.assessmentService.Submit))
}

func (h *AssessmentHandler) Approve(c *gin.Context) {
	runAction(c, withoutReason(h.assessmentService.Approve))
}

func (h *AssessmentHandler) Reject(c *gin.Context) {
	runAction(c, h.assessmentService.Reject)
}

func (h *AssessmentHandler) RequestRevision(c *gin.Context) {
	runAction(c, h.assessmentService.RequestRevision)
}
