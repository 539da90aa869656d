package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CompletedPerUser(ctx *gin.Context) {
	rows, err := h.analytics.CompletedPerUser(ctx.Request.Context())

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, rows)
}

func (h *Handler) OverdueCount(ctx *gin.Context) {
	count, err := h.analytics.Overdue(ctx.Request.Context())

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) CompletionRate(ctx *gin.Context) {
	months, err := h.analytics.CompletionRate(ctx.Request.Context())

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, months)
}
