package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rorbcloud/calibration-backend/internal/requestdata"
	"github.com/rorbcloud/calibration-backend/internal/services"
)

type AccountingHandler struct {
	usage services.UsageService
}

func NewAccountingHandler(usage services.UsageService) *AccountingHandler {
	return &AccountingHandler{usage: usage}
}

// GET /api/usage
func (h *AccountingHandler) GetUsage(c *gin.Context) {
	ownerID := requestdata.OwnerID(c.Request.Context())
	usage, err := h.usage.GetUsage(c.Request.Context(), ownerID)
	if err != nil {
		RespondKindError(c, err)
		return
	}
	RespondOK(c, usage)
}

// PUT /api/usage/limit
func (h *AccountingHandler) SetLimit(c *gin.Context) {
	requesterID := requestdata.OwnerID(c.Request.Context())
	var body struct {
		OwnerID         string `json:"owner_id"`
		SimulationLimit int64  `json:"simulation_limit"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.usage.SetLimit(c.Request.Context(), requesterID, body.OwnerID, body.SimulationLimit); err != nil {
		RespondKindError(c, err)
		return
	}
	RespondOK(c, gin.H{"owner_id": body.OwnerID, "simulation_limit": body.SimulationLimit})
}
