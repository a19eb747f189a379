package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"restaurant_pos/internal/middleware"
	"restaurant_pos/internal/services"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps the engine's error classes onto HTTP responses.
func respondServiceError(c *gin.Context, err error, message string) {
	var partial *services.PartialFailureError
	switch {
	case errors.As(err, &partial):
		utils.LogWarn(err, message)
		c.AbortWithStatusJSON(http.StatusMultiStatus, gin.H{"error": utils.NewAPIError(http.StatusMultiStatus, utils.ErrCodePartialFailure, message, err.Error()), "succeeded": partial.Succeeded})
	case errors.Is(err, services.ErrNotAuthenticated):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, message, err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, message, err.Error()))
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, message, err.Error()))
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnprocessableEntity, utils.ErrCodeInvalidTransition, message, err.Error()))
	case errors.Is(err, services.ErrOperationPending):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusTooManyRequests, utils.ErrCodePending, message, err.Error()))
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, message, err.Error()))
	case errors.Is(err, services.ErrNetwork):
		utils.LogError(err, message)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadGateway, utils.ErrCodeBackendUnavailable, message, "Backend request failed"))
	default:
		utils.LogError(err, message)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, message, "Internal error"))
	}
}

// pathID parses a positive integer path parameter, responding 400 when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondValidationFailed(c, "Invalid "+name+" format")
		return 0, false
	}
	return id, true
}

// currentWorkspace opens the workspace of the request's session.
func currentWorkspace(c *gin.Context, manager *services.WorkspaceManager) (*services.Workspace, bool) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		respondServiceError(c, services.ErrNotAuthenticated, "No authenticated session")
		return nil, false
	}
	ws, err := manager.Open(session)
	if err != nil {
		respondServiceError(c, err, "Failed to open workspace")
		return nil, false
	}
	return ws, true
}
