package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/services"
)

type RecommendationHandler struct {
	log               *logger.Logger
	recommendationSvc services.RecommendationService
}

func NewRecommendationHandler(log *logger.Logger, recommendationSvc services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		log:               log.With("handler", "RecommendationHandler"),
		recommendationSvc: recommendationSvc,
	}
}

// GET /api/users/:userID/recommendations?limit=10&topic=
func (h *RecommendationHandler) GetCourseRecommendations(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	recs, err := h.recommendationSvc.GetCourseRecommendations(c.Request.Context(), userID, intQuery(c, "limit", 10), c.Query("topic"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"recommendations": recs})
}

// GET /api/courses/:courseID/similar?limit=10
func (h *RecommendationHandler) GetSimilarCourses(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	recs, err := h.recommendationSvc.GetSimilarCourses(c.Request.Context(), courseID, intQuery(c, "limit", 10))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"recommendations": recs})
}

// GET /api/courses/trending?limit=10
func (h *RecommendationHandler) GetTrendingCourses(c *gin.Context) {
	recs, err := h.recommendationSvc.GetTrendingCourses(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"recommendations": recs})
}
