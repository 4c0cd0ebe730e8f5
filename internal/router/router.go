package router

import (
	"net/http"
	"time"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/assessly/assessly-backend/internal/handler"
	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/assessly/assessly-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Assessment *handler.AssessmentHandler
	Attempt    *handler.AttemptHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	rdb *redis.Client,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(rdb, "auth", 30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireAnyJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireAnyJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Learner Group (JWT + Single Device) ────────────────────────
	learnerAPI := router.Group("/api/v1")
	learnerAPI.Use(
		middleware.RequireLearnerJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		learnerAPI.GET("/assessments/available", handlers.Attempt.ListAvailableAssessments)
		learnerAPI.POST("/assessments/:assessment_id/attempts", handlers.Attempt.StartAttempt)
		learnerAPI.GET("/assessments/:assessment_id/attempts/live", handlers.Attempt.GetLiveAttempt)
		learnerAPI.GET("/attempts", handlers.Attempt.ListMyAttempts)
		learnerAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		learnerAPI.GET("/attempts/:attempt_id/paper", handlers.Attempt.GetPaper)
		learnerAPI.PUT("/attempts/:attempt_id/answers", handlers.Attempt.SaveDraft)
		learnerAPI.GET("/attempts/:attempt_id/answers", handlers.Attempt.GetDraft)
		learnerAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitAttempt)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireLearnerWSAuth(authService))
	{
		wsGroup.GET("/attempts/:attempt_id/clock", handlers.WS.AttemptClockStream)
	}

	// ─── 4. Instructor Group (JWT) ─────────────────────────────────────
	instructorAPI := router.Group("/api/v1")
	instructorAPI.Use(middleware.RequireInstructorJWT(authService))
	{
		instructorAPI.POST("/assessments", handlers.Assessment.CreateAssessment)
		instructorAPI.GET("/assessments", handlers.Assessment.ListAssessments)
		instructorAPI.GET("/assessments/:assessment_id", handlers.Assessment.GetAssessment)
		instructorAPI.PUT("/assessments/:assessment_id", handlers.Assessment.UpdateAssessment)
		instructorAPI.GET("/assessments/:assessment_id/questions", handlers.Assessment.GetQuestions)
		instructorAPI.PUT("/assessments/:assessment_id/questions", handlers.Assessment.ReplaceQuestions)
		instructorAPI.GET("/assessments/:assessment_id/results", handlers.Assessment.GetResults)
	}

	return router
}
