package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskflow-dev/taskflow/internal/types"
)

const auditPageSize = 100

func (h *Handler) ListAuditLogs(ctx *gin.Context) {
	logs, err := h.audits.Recent(ctx.Request.Context(), auditPageSize)

	if err != nil {
		respondError(ctx, err)
		return
	}

	response := make([]types.AuditLogResponse, 0, len(logs))
	for i := range logs {
		response = append(response, toAuditLogResponse(&logs[i]))
	}

	ctx.JSON(http.StatusOK, response)
}
