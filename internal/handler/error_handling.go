package handler

import (
	"errors"
	"net/http"
	"strconv"

	"miniquest-server/internal/service"
	"miniquest-server/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func handleServiceError(c *gin.Context, err error, logger *zap.Logger) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, service.ErrMissingQuestID),
		errors.Is(err, service.ErrInvalidQuestID),
		errors.Is(err, service.ErrNoHistory),
		errors.Is(err, models.ErrBadRequest),
		errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Error: err.Error()}
	case errors.Is(err, models.ErrQuestNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Error: models.ErrQuestNotFound.Error()}
	case errors.Is(err, service.ErrQuestCompleted):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Error: service.ErrQuestCompleted.Error()}
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Error("Quest storage unavailable", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: service.ErrStoreUnavailable.Error()}
	default:
		logger.Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Error: models.ErrInternalServer.Error()}
	}

	apiErrorsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.AbortWithStatusJSON(statusCode, errResp)
}
