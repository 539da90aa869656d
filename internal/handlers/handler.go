package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/middleware"
	"github.com/taskflow-dev/taskflow/internal/notify"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/services"
	"gorm.io/gorm"
)

// Handler holds the services every route handler needs.
type Handler struct {
	db        *gorm.DB
	auth      *services.AuthService
	tasks     *services.TaskService
	analytics *services.AnalyticsService
	users     *repository.UserRepository
	audits    *repository.AuditRepository
	registry  *notify.Registry

	cookieDomain   string
	cookieTTL      time.Duration
	allowedOrigins []string
}

type Options struct {
	DB             *gorm.DB
	Auth           *services.AuthService
	Tasks          *services.TaskService
	Analytics      *services.AnalyticsService
	Users          *repository.UserRepository
	Audits         *repository.AuditRepository
	Registry       *notify.Registry
	CookieDomain   string
	CookieTTL      time.Duration
	AllowedOrigins []string
}

func New(opts Options) *Handler {
	return &Handler{
		db:             opts.DB,
		auth:           opts.Auth,
		tasks:          opts.Tasks,
		analytics:      opts.Analytics,
		users:          opts.Users,
		audits:         opts.Audits,
		registry:       opts.Registry,
		cookieDomain:   opts.CookieDomain,
		cookieTTL:      opts.CookieTTL,
		allowedOrigins: opts.AllowedOrigins,
	}
}

func logger() *slog.Logger {
	return slog.Default().With("module", "handlers")
}

// respondError writes err as {"error": message}. Server errors are logged at
// error level with their cause; client errors at warn.
func respondError(ctx *gin.Context, err error) {
	status := apperr.Status(err)
	attrs := []any{
		"method", ctx.Request.Method,
		"path", ctx.FullPath(),
		"status", status,
		"error", err.Error(),
	}
	if requestID, ok := ctx.Get(middleware.RequestIDKey); ok {
		attrs = append(attrs, "request_id", requestID)
	}

	if status >= http.StatusInternalServerError {
		logger().ErrorContext(ctx.Request.Context(), "request failed", attrs...)
	} else {
		logger().WarnContext(ctx.Request.Context(), "request rejected", attrs...)
	}

	ctx.JSON(status, gin.H{"error": apperr.Message(err)})
}
