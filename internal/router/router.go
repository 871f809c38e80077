package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/praxislearn/assess-backend/internal/handler"
	"github.com/praxislearn/assess-backend/internal/middleware"
	"github.com/praxislearn/assess-backend/internal/response"
	"github.com/praxislearn/assess-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireLearnerJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. Session Group (Learner JWT) ────────────────────────────────
	sessionAPI := router.Group("/api/v1/sessions")
	sessionAPI.Use(middleware.RequireLearnerJWT(authService))
	{
		sessionAPI.POST("", handlers.Session.Start)
		sessionAPI.GET("/:session_id", handlers.Session.Get)
		sessionAPI.GET("/:session_id/questions", handlers.Session.Questions)
		sessionAPI.POST("/:session_id/answers", handlers.Session.RecordAnswer)
		sessionAPI.POST("/:session_id/review", handlers.Session.ToggleReview)
		sessionAPI.POST("/:session_id/time", handlers.Session.AccountTime)
		sessionAPI.POST("/:session_id/submit", handlers.Session.Submit)
		sessionAPI.GET("/:session_id/result", handlers.Session.Result)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStateStream)
	}

	return router
}
