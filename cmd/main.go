package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kestrelworks/adaptlearn-backend/internal/clients/redis"
	"github.com/kestrelworks/adaptlearn-backend/internal/clients/umami"
	"github.com/kestrelworks/adaptlearn-backend/internal/db"
	"github.com/kestrelworks/adaptlearn-backend/internal/handlers"
	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/middleware"
	"github.com/kestrelworks/adaptlearn-backend/internal/observability"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/server"
	"github.com/kestrelworks/adaptlearn-backend/internal/services"
	"github.com/kestrelworks/adaptlearn-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	port := utils.GetEnv("PORT", "8080", log)
	allowedOrigins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000", log), ",")

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "adaptlearn-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(ctx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	rdb, err := redis.NewClient(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}

	// Umami
	umamiClient := umami.NewClient(log)

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	eventRepo := repos.NewBehaviorEventRepo(thePG, log)
	patternRepo := repos.NewLearningPatternRepo(thePG, log)
	profileRepo := repos.NewLearningProfileRepo(thePG, log)
	courseRepo := repos.NewCourseRepo(thePG, log)
	chapterRepo := repos.NewChapterRepo(thePG, log)
	assessmentRepo := repos.NewAssessmentRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	behaviorService := services.NewBehaviorService(thePG, log, eventRepo)
	analyticsService := services.NewAnalyticsService(thePG, log, eventRepo, patternRepo)
	recommendationService := services.NewRecommendationService(thePG, log, courseRepo, profileRepo, eventRepo)
	personalizationService := services.NewPersonalizationService(thePG, log, profileRepo, patternRepo, eventRepo, analyticsService, recommendationService)
	adaptationService := services.NewAdaptationService(thePG, log, profileRepo, eventRepo, courseRepo, chapterRepo, assessmentRepo)
	sessionService := services.NewAdaptiveSessionService(log, rdb)
	healthService := services.NewHealthService(log,
		services.NewDatabaseHealthChecker(thePG),
		analyticsService,
		personalizationService,
		umamiClient,
	)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(log, authService)
	healthHandler := handlers.NewHealthHandler(log, healthService)
	behaviorHandler := handlers.NewBehaviorHandler(log, behaviorService)
	profileHandler := handlers.NewProfileHandler(log, personalizationService, analyticsService)
	recommendationHandler := handlers.NewRecommendationHandler(log, recommendationService)
	adaptationHandler := handlers.NewAdaptationHandler(log, adaptationService, sessionService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		ServiceName:           "adaptlearn-backend",
		AllowedOrigins:        allowedOrigins,
		AuthHandler:           authHandler,
		AuthMiddleware:        authMiddleware,
		HealthHandler:         healthHandler,
		BehaviorHandler:       behaviorHandler,
		ProfileHandler:        profileHandler,
		RecommendationHandler: recommendationHandler,
		AdaptationHandler:     adaptationHandler,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
