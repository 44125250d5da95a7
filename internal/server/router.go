package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kestrelworks/adaptlearn-backend/internal/handlers"
	"github.com/kestrelworks/adaptlearn-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName           string
	AllowedOrigins        []string
	AuthHandler           *handlers.AuthHandler
	AuthMiddleware        *middleware.AuthMiddleware
	HealthHandler         *handlers.HealthHandler
	BehaviorHandler       *handlers.BehaviorHandler
	ProfileHandler        *handlers.ProfileHandler
	RecommendationHandler *handlers.RecommendationHandler
	AdaptationHandler     *handlers.AdaptationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthz", cfg.HealthHandler.Check)
	auth := router.Group("/auth")
	{
		auth.POST("/register", cfg.AuthHandler.Register)
		auth.POST("/login", cfg.AuthHandler.Login)
	}

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Behavior events
	api.POST("/events", cfg.BehaviorHandler.RecordEvent)
	api.GET("/events", cfg.BehaviorHandler.ListEvents)
	api.DELETE("/users/:userID/behavior-data", cfg.BehaviorHandler.DeleteUserData)
	api.POST("/users/:userID/anonymize", cfg.BehaviorHandler.AnonymizeUserData)

	// Profiles and analytics
	api.GET("/users/:userID/profile", cfg.ProfileHandler.GetProfile)
	api.POST("/users/:userID/profile", cfg.ProfileHandler.CreateProfile)
	api.GET("/users/:userID/engagement", cfg.ProfileHandler.GetEngagementMetrics)
	api.GET("/users/:userID/pattern", cfg.ProfileHandler.GetLearningPattern)

	// Recommendations
	api.GET("/users/:userID/recommendations", cfg.RecommendationHandler.GetCourseRecommendations)
	api.GET("/courses/trending", cfg.RecommendationHandler.GetTrendingCourses)
	api.GET("/courses/:courseID/similar", cfg.RecommendationHandler.GetSimilarCourses)

	// Adaptation
	api.GET("/users/:userID/courses/:courseID/pacing", cfg.AdaptationHandler.AdjustPacing)
	api.GET("/users/:userID/supplementary", cfg.AdaptationHandler.GetSupplementaryContent)
	api.POST("/users/:userID/assessments/:assessmentID/modify", cfg.AdaptationHandler.ModifyAssessmentDifficulty)

	// Adaptive assessment sessions
	api.POST("/users/:userID/sessions", cfg.AdaptationHandler.StartAdaptiveSession)
	api.GET("/sessions/:sessionID/next", cfg.AdaptationHandler.NextQuestion)
	api.POST("/sessions/:sessionID/answers", cfg.AdaptationHandler.RecordAnswer)
	api.DELETE("/sessions/:sessionID", cfg.AdaptationHandler.EndSession)

	return router
}
