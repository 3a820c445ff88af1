package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/handler"
	"github.com/stemsi/exstem-drill/internal/middleware"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Session  *handler.SessionHandler
	Exercise *handler.ExerciseHandler
	Result   *handler.ResultHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background work of the rate limiters.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID and a request-scoped logger on every request.
	router.Use(response.RequestIDMiddleware(log))

	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1")
	{
		publicAPI.GET("/exercise-types", middleware.CacheControl(3600), handlers.System.ExerciseTypes)
	}

	// Token issuance is guarded by the client key; limit guessing.
	authLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/token", authLimiter.Middleware(), handlers.Auth.IssueToken)

		signedIn := auth.Group("")
		signedIn.Use(middleware.RequireAnyJWT(authService), middleware.RequireActiveToken(authService))
		signedIn.GET("/me", handlers.Auth.Me)
		signedIn.POST("/logout", handlers.Auth.Logout)
	}

	// ─── 2. Learner Group (JWT + revocation) ───────────────────────────
	learnerLimiter := middleware.NewRateLimiter(ctx, 600, time.Minute).PerUser()

	learnerAPI := router.Group("/api/v1")
	learnerAPI.Use(
		middleware.RequireLearnerJWT(authService),
		middleware.RequireActiveToken(authService),
		learnerLimiter.Middleware(),
		middleware.NoStore(),
	)
	{
		learnerAPI.GET("/results", handlers.Result.List)

		sessions := learnerAPI.Group("/sessions")
		sessions.POST("", handlers.Session.Create)
		sessions.GET("", handlers.Session.List)
		sessions.GET("/:session_id", handlers.Session.Get)
		sessions.DELETE("/:session_id", handlers.Session.Delete)
		sessions.POST("/:session_id/start", handlers.Session.Start)
		sessions.POST("/:session_id/answer", handlers.Session.SubmitAnswer)
		sessions.POST("/:session_id/next", handlers.Session.Next)
		sessions.POST("/:session_id/previous", handlers.Session.Previous)
		sessions.POST("/:session_id/goto", handlers.Session.GoTo)
		sessions.POST("/:session_id/hint", handlers.Session.Hint)
		sessions.POST("/:session_id/pause", handlers.Session.Pause)
		sessions.POST("/:session_id/resume", handlers.Session.Resume)
		sessions.POST("/:session_id/bookmark", handlers.Session.Bookmark)
		sessions.POST("/:session_id/complete", handlers.Session.Complete)
		sessions.POST("/:session_id/reset", handlers.Session.Reset)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService), middleware.RequireActiveToken(authService))
	{
		ws.GET("/sessions/:session_id/events", handlers.WS.SessionStream)
	}

	// ─── 4. Author Group (JWT + RBAC) ──────────────────────────────────
	authorAPI := router.Group("/api/v1")
	authorAPI.Use(middleware.RequireAuthorJWT(authService), middleware.RequireActiveToken(authService))
	{
		authorAPI.GET("/exercises",
			middleware.RequirePermission(model.PermissionExercisesRead),
			handlers.Exercise.List,
		)
		authorAPI.GET("/exercises/:exercise_id",
			middleware.RequirePermission(model.PermissionExercisesRead),
			handlers.Exercise.Get,
		)
		authorAPI.PUT("/exercises/:exercise_id",
			middleware.RequirePermission(model.PermissionExercisesWrite),
			handlers.Exercise.Put,
		)
		authorAPI.DELETE("/exercises/:exercise_id",
			middleware.RequirePermission(model.PermissionExercisesWrite),
			handlers.Exercise.Delete,
		)
		authorAPI.GET("/exercises/:exercise_id/results",
			middleware.RequirePermission(model.PermissionResultsRead),
			handlers.Exercise.Results,
		)

		// System Monitoring
		authorAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
