package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taskflow-dev/taskflow/internal/auth"
	"github.com/taskflow-dev/taskflow/internal/handlers"
	"github.com/taskflow-dev/taskflow/internal/middleware"
	"github.com/taskflow-dev/taskflow/internal/policy"
	"github.com/taskflow-dev/taskflow/internal/repository"
)

type Config struct {
	Handler        *handlers.Handler
	Tokens         *auth.TokenIssuer
	Users          *repository.UserRepository
	AllowedOrigins []string
}

func NewRouter(cfg Config) *gin.Engine {
	r := gin.Default()
	h := cfg.Handler

	r.Use(middleware.RequestID())

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	requireAuth := middleware.AuthMiddleware(cfg.Tokens, cfg.Users)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/ws", requireAuth, h.WebSocket)

		account := api.Group("/auth")
		{
			account.POST("/register", h.Register)
			account.POST("/login", h.Login)
			account.POST("/logout", h.Logout)
			account.GET("/me", requireAuth, h.Me)
		}

		tasks := api.Group("/tasks", requireAuth)
		{
			tasks.POST("", h.CreateTask)
			tasks.GET("", h.ListTasks)
			tasks.GET("/:id", h.GetTask)
			tasks.PUT("/:id", h.UpdateTask)
			tasks.DELETE("/:id", h.DeleteTask)
		}

		api.GET("/users", requireAuth, h.ListUsers)
		api.GET("/audit", requireAuth, middleware.Require(policy.ActionViewAuditLog), h.ListAuditLogs)

		analytics := api.Group("/analytics", requireAuth, middleware.Require(policy.ActionViewAnalytics))
		{
			analytics.GET("/completed-per-user", h.CompletedPerUser)
			analytics.GET("/overdue", h.OverdueCount)
			analytics.GET("/completion-rate", h.CompletionRate)
		}
	}

	return r
}
