package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rorbcloud/calibration-backend/internal/services"
)

type StatusHandler struct {
	progress services.ProgressService
}

func NewStatusHandler(progress services.ProgressService) *StatusHandler {
	return &StatusHandler{progress: progress}
}

// GET /api/calibrate/:task_id/status
func (h *StatusHandler) GetTaskStatus(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_task_id", err)
		return
	}
	progress, err := h.progress.GetTaskProgress(c.Request.Context(), taskID)
	if err != nil {
		RespondKindError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"message": "Simulation status retrieved",
		"task_id": taskID,
		"result":  progress,
	})
}
