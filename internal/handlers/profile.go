package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/services"
)

type ProfileHandler struct {
	log                *logger.Logger
	personalizationSvc services.PersonalizationService
	analyticsSvc       services.AnalyticsService
}

func NewProfileHandler(log *logger.Logger, personalizationSvc services.PersonalizationService, analyticsSvc services.AnalyticsService) *ProfileHandler {
	return &ProfileHandler{
		log:                log.With("handler", "ProfileHandler"),
		personalizationSvc: personalizationSvc,
		analyticsSvc:       analyticsSvc,
	}
}

// GET /api/users/:userID/profile
// Regenerates the profile so the response reflects the latest events.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	profile, err := h.personalizationSvc.GenerateUserProfile(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, profile)
}

// POST /api/users/:userID/profile
// Fails when a profile already exists: one profile per user.
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	profile, err := h.personalizationSvc.CreateUserProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileExists) {
			RespondError(c, http.StatusConflict, "profile_exists", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// GET /api/users/:userID/engagement?window_hours=24
func (h *ProfileHandler) GetEngagementMetrics(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	metrics, err := h.analyticsSvc.CalculateEngagementMetrics(c.Request.Context(), userID, intQuery(c, "window_hours", 24))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, metrics)
}

// GET /api/users/:userID/pattern
func (h *ProfileHandler) GetLearningPattern(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	pattern, err := h.analyticsSvc.IdentifyLearningPatterns(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if pattern == nil {
		RespondOK(c, gin.H{"pattern": nil, "message": "not enough behavior data yet"})
		return
	}
	RespondOK(c, pattern)
}
