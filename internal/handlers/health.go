package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(ctx *gin.Context) {
	status := http.StatusOK
	database := "ok"

	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(pingCtx)
	}
	if err != nil {
		logger().ErrorContext(ctx.Request.Context(), "health check database ping failed", "error", err.Error())
		status = http.StatusServiceUnavailable
		database = "unreachable"
	}

	ctx.JSON(status, gin.H{
		"status":       http.StatusText(status),
		"message":      "Taskflow is running",
		"database":     database,
		"online_users": h.registry.Count(),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}
