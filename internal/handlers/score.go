package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/pkg/response"
)

type ScoreHandler struct {
	scoreService *services.ScoreService
	queue        services.TaskQueue
}

func NewScoreHandler(scoreService *services.ScoreService, queue services.TaskQueue) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService, queue: queue}
}

// List ranks the yearly indicator scores
// GET /api/scores?year=
func (h *ScoreHandler) List(c *gin.Context) {
	var req services.ScoreListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.scoreService.Ranking(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Paged(c, resp.Total, resp.Page, resp.PageSize, resp.Items)
}

// GetByIndicator returns one snapshot
// GET /api/scores/:id?year=
func (h *ScoreHandler) GetByIndicator(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	year, ok := parseYear(c)
	if !ok {
		return
	}

	snap, err := h.scoreService.Get(id, year)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, snap)
}

// Recalculate grades one indicator synchronously. A whole-year run goes to
// the task queue and is answered with 202.
// POST /api/scores/recalculate
func (h *ScoreHandler) Recalculate(c *gin.Context) {
	var req services.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if req.IndicatorID == 0 {
		if err := h.queue.Enqueue(&services.RecalculateTask{Year: req.Year}); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, response.Response{
			Code:    0,
			Message: "accepted",
			Data:    gin.H{"year": req.Year, "async": h.queue.IsAsync()},
		})
		return
	}

	snap, err := h.scoreService.RecalculateIndicator(c.Request.Context(), middleware.GetPrincipal(c), req.IndicatorID, req.Year)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, snap)
}
