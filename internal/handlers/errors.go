package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kwanter/sakip-sub003/internal/middleware"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"github.com/kwanter/sakip-sub003/pkg/response"
	"gorm.io/gorm"
)

// toAppError maps service and workflow errors onto HTTP statuses. Unknown
// errors become a 500 with a generic message; the cause is only logged.
func toAppError(err error) *response.AppError {
	var appErr *response.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, workflow.ErrForbidden):
		return response.NewForbidden(err.Error()).WithCause(err)
	case errors.Is(err, workflow.ErrIllegalTransition),
		errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrConcurrentUpdate):
		return response.NewConflict(err.Error()).WithCause(err)
	case errors.Is(err, services.ErrInvalidInput):
		return response.NewBadRequest(err.Error()).WithCause(err)
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return response.NewNotFound(err.Error()).WithCause(err)
	case errors.Is(err, services.ErrInvalidLogin):
		return response.NewUnauthorized(err.Error()).WithCause(err)
	}
	return response.NewServerError("internal server error").WithCause(err)
}

func respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
	}
	response.Error(c, appErr)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parseYear reads ?year=, defaulting to the current year.
func parseYear(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return time.Now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2100 {
		response.BadRequest(c, "invalid year")
		return 0, false
	}
	return year, true
}

// withoutReason adapts actions that take no free text.
func withoutReason[T any](fn func(p services.Principal, id uint) (T, error)) func(services.Principal, uint, string) (T, error) {
	return func(p services.Principal, id uint, _ string) (T, error) {
		return fn(p, id)
	}
}

// runAction handles POST /<resource>/:id/<action>. The body is optional and
// only carries the rejection reason or revision notes.
func runAction[T any](c *gin.Context, do func(p services.Principal, id uint, reason string) (T, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.ActionRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	out, err := do(middleware.GetPrincipal(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, out)
}
