package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz    *handler.QuizHandler
	WS      *handler.WSHandler
	Result  *handler.ResultHandler
	Monitor *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// Spreadsheet exports are already zip containers; monitor streams flush
	// per event.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper:   middleware.SkipUnbuffered,
	}))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT + per-user rate limit) ──────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(auth), limiter.Middleware())
	{
		studentAPI.GET("/assessments", handlers.Quiz.ListAssessments)
		studentAPI.GET("/assessments/:id/paper", handlers.Quiz.GetPaper)
		studentAPI.POST("/assessments/:id/start", handlers.Quiz.Start)

		studentAPI.GET("/quiz/state", handlers.Quiz.State)
		studentAPI.PUT("/quiz/answers", handlers.Quiz.SelectAnswer)
		studentAPI.PUT("/quiz/position", handlers.Quiz.Navigate)
		studentAPI.POST("/quiz/submit", handlers.Quiz.Submit)
		studentAPI.DELETE("/quiz", handlers.Quiz.Abandon)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/student/quiz/stream", handlers.WS.QuizStream)
	}

	// ─── 3. Staff Group (JWT) ──────────────────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaffJWT(auth), limiter.Middleware())
	{
		staffAPI.GET("/assessments/:id/attempts", handlers.Result.ListAttempts)
		staffAPI.GET("/assessments/:id/attempts/export", handlers.Result.ExportAttempts)
		staffAPI.GET("/assessments/:id/monitor", handlers.Monitor.MonitorAssessment)
	}

	return router
}
