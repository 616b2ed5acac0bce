package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"miniquest-server/internal/service"
	"miniquest-server/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuestHandler serves the MiniQuest HTTP API.
type QuestHandler struct {
	service service.QuestService
	logger  *zap.Logger
}

// NewQuestHandler creates a new QuestHandler.
func NewQuestHandler(s service.QuestService, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{
		service: s,
		logger:  logger.Named("QuestHandler"),
	}
}

// RegisterRoutes registers the quest routes on router.
func (h *QuestHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/start", h.startQuest)
	router.POST("/turn", h.processTurn)
	router.GET("/dashboard/:quest_id", h.getDashboard)
	router.POST("/recap/:quest_id", h.recap)
	router.POST("/log_event", h.logEvent)
	router.GET("/progress/:user", h.listProgress)
}

func (h *QuestHandler) startQuest(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
			h.logger.Debug("Ignoring unreadable /start body", zap.Error(err))
		}
	}

	res, err := h.service.StartQuest(c.Request.Context(), req.User)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	questsStartedTotal.Inc()
	c.JSON(http.StatusOK, narrationResponse{
		QuestID:    res.QuestID.String(),
		AIResponse: res.Narration,
	})
}

func (h *QuestHandler) processTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid /turn request body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: invalid request body", models.ErrBadRequest), h.logger)
		return
	}

	res, err := h.service.ProcessTurn(c.Request.Context(), req.QuestID, req.ChildInput)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, narrationResponse{
		QuestID:    res.QuestID.String(),
		AIResponse: res.Narration,
	})
}

func (h *QuestHandler) getDashboard(c *gin.Context) {
	dashboard, err := h.service.GetDashboard(c.Request.Context(), c.Param("quest_id"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		TimeOnTask:   dashboard.TimeOnTask,
		ChoicesMade:  dashboard.ChoicesMade,
		SkillsTagged: dashboard.SkillsTagged,
	})
}

func (h *QuestHandler) recap(c *gin.Context) {
	recap, err := h.service.Recap(c.Request.Context(), c.Param("quest_id"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, recapResponse{Recap: recap})
}

// logEvent accepts any body and always acknowledges it.
func (h *QuestHandler) logEvent(c *gin.Context) {
	var body interface{}
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Client event is not valid JSON", zap.Error(err))
	}

	payload, ok := body.(map[string]interface{})
	if !ok {
		payload = map[string]interface{}{}
		if body != nil {
			payload["value"] = body
		}
	}

	clientEventsTotal.Inc()
	h.service.LogEvent(c.Request.Context(), payload)
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

func (h *QuestHandler) listProgress(c *gin.Context) {
	summaries, err := h.service.ListProgress(c.Request.Context(), c.Param("user"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toProgressItems(summaries))
}
