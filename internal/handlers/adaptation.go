package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/services"
)

type AdaptationHandler struct {
	log           *logger.Logger
	adaptationSvc services.AdaptationService
	sessionSvc    services.AdaptiveSessionService
}

func NewAdaptationHandler(log *logger.Logger, adaptationSvc services.AdaptationService, sessionSvc services.AdaptiveSessionService) *AdaptationHandler {
	return &AdaptationHandler{
		log:           log.With("handler", "AdaptationHandler"),
		adaptationSvc: adaptationSvc,
		sessionSvc:    sessionSvc,
	}
}

// GET /api/users/:userID/courses/:courseID/pacing
// 204 when confidence gating or insufficient data suppressed the result.
func (h *AdaptationHandler) AdjustPacing(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	courseID, err := uuid.Parse(c.Param("courseID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	adjustment, err := h.adaptationSvc.AdjustPacing(c.Request.Context(), userID, courseID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if adjustment == nil {
		c.Status(http.StatusNoContent)
		return
	}
	RespondOK(c, adjustment)
}

// GET /api/users/:userID/supplementary?topic=&limit=5
func (h *AdaptationHandler) GetSupplementaryContent(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	materials, err := h.adaptationSvc.ProvideSupplementaryContent(c.Request.Context(), userID, c.Query("topic"), intQuery(c, "limit", 5))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"materials": materials})
}

// POST /api/users/:userID/assessments/:assessmentID/modify
// 204 when the computed change is below the significant-change threshold.
func (h *AdaptationHandler) ModifyAssessmentDifficulty(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	assessmentID, err := uuid.Parse(c.Param("assessmentID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var body struct {
		Metadata map[string]interface{} `json:"metadata"`
	}
	_ = c.ShouldBindJSON(&body)

	modification, err := h.adaptationSvc.ModifyAssessmentDifficulty(c.Request.Context(), userID, assessmentID, body.Metadata)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if modification == nil {
		c.Status(http.StatusNoContent)
		return
	}
	RespondOK(c, modification)
}

// POST /api/users/:userID/sessions
func (h *AdaptationHandler) StartAdaptiveSession(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	var body struct {
		AssessmentID      uuid.UUID   `json:"assessment_id"`
		QuestionIDs       []uuid.UUID `json:"question_ids"`
		InitialDifficulty float64     `json:"initial_difficulty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	session, err := h.sessionSvc.StartSession(c.Request.Context(), userID, body.AssessmentID, body.QuestionIDs, body.InitialDifficulty)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GET /api/sessions/:sessionID/next
func (h *AdaptationHandler) NextQuestion(c *gin.Context) {
	questionID, difficulty, err := h.sessionSvc.NextQuestion(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if questionID == nil {
		c.Status(http.StatusNoContent)
		return
	}
	RespondOK(c, gin.H{"question_id": questionID, "difficulty": difficulty})
}

// POST /api/sessions/:sessionID/answers
func (h *AdaptationHandler) RecordAnswer(c *gin.Context) {
	var body struct {
		QuestionID       uuid.UUID `json:"question_id"`
		Correct          bool      `json:"correct"`
		TimeSpentSeconds float64   `json:"time_spent_seconds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	session, err := h.sessionSvc.RecordAnswer(c.Request.Context(), c.Param("sessionID"), body.QuestionID, body.Correct, body.TimeSpentSeconds)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondOK(c, session)
}

// DELETE /api/sessions/:sessionID
func (h *AdaptationHandler) EndSession(c *gin.Context) {
	if err := h.sessionSvc.EndSession(c.Request.Context(), c.Param("sessionID")); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.Status(http.StatusNoContent)
}
