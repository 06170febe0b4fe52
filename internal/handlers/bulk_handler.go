package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ninex/internal/services"
)

type BulkHandler struct {
	bulk services.BulkService
}

func NewBulkHandler(bulk services.BulkService) *BulkHandler {
	return &BulkHandler{bulk: bulk}
}

type extendRequest struct {
	Days float64 `json:"days" binding:"required"`
}

// @Summary      Сбросить HWID у всех доступных аккаунтов
// @Tags         Bulk
// @Produce      json
// @Success      200  {object}  services.BatchResult
// @Failure      502  {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/bulk/reset-hwid [post]
func (h *BulkHandler) ResetHWID(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	res, err := h.bulk.ResetAllHWID(c.Request.Context(), actor)
	respondBatch(c, "reset_hwid", res, err)
}

// @Summary      Продлить всех пользователей
// @Tags         Bulk
// @Accept       json
// @Produce      json
// @Param        body  body      extendRequest  true  "Дни (можно дробные)"
// @Success      200   {object}  services.BatchResult
// @Security     BearerAuth
// @Router       /api/bulk/extend [post]
func (h *BulkHandler) Extend(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Days must be a positive number.")
		return
	}
	res, err := h.bulk.ExtendAllUsers(c.Request.Context(), actor, req.Days)
	respondBatch(c, "extend", res, err)
}

// @Summary      Подтвердить все неоплаченные
// @Tags         Bulk
// @Produce      json
// @Success      200  {object}  services.BatchResult
// @Security     BearerAuth
// @Router       /api/bulk/approve-payments [post]
func (h *BulkHandler) ApprovePayments(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	res, err := h.bulk.ApproveAllUnpaid(c.Request.Context(), actor)
	respondBatch(c, "approve_payments", res, err)
}
