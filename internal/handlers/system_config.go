package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(configService *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService}
}

// ListGroup returns the settings of one group
// GET /api/system-config?group=scoring
func (h *SystemConfigHandler) ListGroup(c *gin.Context) {
	group := c.DefaultQuery("group", "system")
	configs, err := h.configService.GetByGroup(group)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, configs)
}

// GET /api/system-config/:key
func (h *SystemConfigHandler) Get(c *gin.Context) {
	key := c.Param("key")
	value, err := h.configService.Get(key)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"key": key, "value": value})
}

type setConfigRequest struct {
	Value *string `json:"value" binding:"required"`
}

// PUT /api/system-config/:key
func (h *SystemConfigHandler) Set(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	key := c.Param("key")
	if err := h.configService.Set(key, *req.Value); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"key": key, "value": *req.Value})
}
