package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type InstitutionHandler struct {
	institutionService *services.InstitutionService
}

func NewInstitutionHandler(institutionService *services.InstitutionService) *InstitutionHandler {
	return &InstitutionHandler{institutionService: institutionService}
}

// GET /api/institutions
func (h *InstitutionHandler) List(c *gin.Context) {
	items, err := h.institutionService.List()
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, items)
}

// GET /api/institutions/:id
func (h *InstitutionHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inst, err := h.institutionService.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, inst)
}

// POST /api/institutions
func (h *InstitutionHandler) Create(c *gin.Context) {
	var req services.CreateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	inst, err := h.institutionService.Create(middleware.GetPrincipal(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, inst)
}
