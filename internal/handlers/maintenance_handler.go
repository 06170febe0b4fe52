package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ninex/internal/services"
)

type MaintenanceHandler struct {
	maintenance services.MaintenanceService
}

func NewMaintenanceHandler(maintenance services.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

type maintenanceRequest struct {
	State string `json:"state" binding:"required"`
}

// @Summary      Текущее состояние (v3 | Maintenance)
// @Tags         Maintenance
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/maintenance [get]
func (h *MaintenanceHandler) Get(c *gin.Context) {
	state, err := h.maintenance.State(c.Request.Context())
	if err != nil {
		respondError(c, "maintenance", "get", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// @Summary      Переключить обслуживание и разослать версию
// @Tags         Maintenance
// @Accept       json
// @Produce      json
// @Param        body  body      maintenanceRequest  true  "v3 или Maintenance"
// @Success      200   {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/maintenance [put]
func (h *MaintenanceHandler) Put(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request.")
		return
	}
	res, err := h.maintenance.SetState(c.Request.Context(), actor, req.State)
	if err != nil {
		respondBatch(c, "maintenance", res, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": req.State, "result": res})
}
