package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ninex/internal/authz"
	"ninex/internal/models"
	"ninex/internal/services"
)

type AccountHandler struct {
	accounts services.AccountService
}

func NewAccountHandler(accounts services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type giveCreditsRequest struct {
	Amount int `json:"amount" binding:"required"`
}

type purchasedDaysRequest struct {
	Days int `json:"days" binding:"required"`
}

func listQuery(c *gin.Context) services.ListQuery {
	return services.ListQuery{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", services.DefaultPageSize),
		Search:   strings.TrimSpace(c.Query("search")),
		Sort:     c.Query("sort"),
		Payment:  c.Query("payment"),
		Refresh:  c.Query("refresh") == "true",
	}
}

// AccountResponse оборачивает запись; Warning заполняется, если запись изменена,
// а последующее списание или начисление не прошло.
type AccountResponse struct {
	Account *models.Account `json:"account"`
	Warning string          `json:"warning,omitempty"`
}

// MeResponse — свежая запись аккаунта и роли, которые он может создавать.
type MeResponse struct {
	Account   *models.Account `json:"account"`
	CanCreate []models.Role   `json:"can_create"`
}

// @Summary      Текущий аккаунт
// @Tags         Accounts
// @Produce      json
// @Success      200  {object}  handlers.MeResponse
// @Security     BearerAuth
// @Router       /api/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	acc, err := h.accounts.Me(c.Request.Context(), actor)
	if err != nil {
		respondError(c, "accounts", "me", err)
		return
	}
	c.JSON(http.StatusOK, MeResponse{Account: acc, CanCreate: authz.CreatableRoles(acc.AccountType)})
}

// @Summary      Страница аккаунтов
// @Tags         Accounts
// @Produce      json
// @Param        page       query  int     false  "Номер страницы (с 1)"
// @Param        page_size  query  int     false  "Размер страницы (до 100)"
// @Param        search     query  string  false  "Поиск по имени"
// @Param        sort       query  string  false  "latest|oldest|az|za|expiry_desc"
// @Param        payment    query  string  false  "paid|unpaid"
// @Success      200  {object}  services.ListPage
// @Security     BearerAuth
// @Router       /api/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	page, err := h.accounts.ListPage(c.Request.Context(), actor, listQuery(c))
	if err != nil {
		respondError(c, "accounts", "list", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Summary      Количество аккаунтов
// @Tags         Accounts
// @Produce      json
// @Param        search   query  string  false  "Поиск по имени"
// @Param        payment  query  string  false  "paid|unpaid"
// @Success      200  {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/accounts/count [get]
func (h *AccountHandler) Count(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	n, complete, err := h.accounts.Count(c.Request.Context(), actor, strings.TrimSpace(c.Query("search")), c.Query("payment"))
	if err != nil {
		respondError(c, "accounts", "count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n, "complete": complete})
}

// @Summary      Статистика
// @Tags         Accounts
// @Produce      json
// @Success      200  {object}  services.Stats
// @Security     BearerAuth
// @Router       /api/accounts/stats [get]
func (h *AccountHandler) Stats(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	st, err := h.accounts.Stats(c.Request.Context(), actor)
	if err != nil {
		respondError(c, "accounts", "stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Создать аккаунт
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        body  body      services.CreateAccount  true  "Новый аккаунт"
// @Success      201   {object}  handlers.AccountResponse
// @Failure      400   {object}  map[string]interface{}
// @Failure      403   {object}  map[string]interface{}
// @Failure      409   {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req services.CreateAccount
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request.")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.TelegramID = strings.TrimSpace(req.TelegramID)

	acc, err := h.accounts.Create(c.Request.Context(), actor, req)
	if err != nil && acc == nil {
		respondError(c, "accounts", "create", err)
		return
	}
	if err != nil {
		// запись создана, но последующие списания не прошли
		log.Printf("[accounts][create] created id=%s with follow-up failure: err=%v", acc.ID, err)
		c.JSON(http.StatusCreated, AccountResponse{Account: acc, Warning: err.Error()})
		return
	}
	log.Printf("[accounts][create] by=%s id=%s username=%q type=%s", actor.Username, acc.ID, acc.Username, acc.AccountType)
	c.JSON(http.StatusCreated, AccountResponse{Account: acc})
}

// @Summary      Удалить аккаунт
// @Tags         Accounts
// @Param        id  path  string  true  "ID записи"
// @Success      204
// @Security     BearerAuth
// @Router       /api/accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, "accounts", "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Сбросить HWID
// @Tags         Accounts
// @Param        id  path  string  true  "ID записи"
// @Success      204
// @Security     BearerAuth
// @Router       /api/accounts/{id}/reset-hwid [post]
func (h *AccountHandler) ResetHWID(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	if err := h.accounts.ResetHWID(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, "accounts", "reset_hwid", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Передать кредиты
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "ID записи"
// @Param        body  body  giveCreditsRequest  true  "Количество"
// @Success      200   {object}  handlers.AccountResponse
// @Security     BearerAuth
// @Router       /api/accounts/{id}/credits [post]
func (h *AccountHandler) GiveCredits(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req giveCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid credit amount.")
		return
	}
	acc, err := h.accounts.GiveCredits(c.Request.Context(), actor, c.Param("id"), req.Amount)
	if err != nil && acc == nil {
		respondError(c, "accounts", "credits", err)
		return
	}
	if err != nil {
		log.Printf("[accounts][credits] given id=%s with follow-up failure: err=%v", acc.ID, err)
		c.JSON(http.StatusOK, AccountResponse{Account: acc, Warning: err.Error()})
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Account: acc})
}

// @Summary      Переключить статус оплаты админа
// @Tags         Accounts
// @Param        id  path  string  true  "ID записи"
// @Success      200  {object}  handlers.AccountResponse
// @Security     BearerAuth
// @Router       /api/accounts/{id}/payment [post]
func (h *AccountHandler) TogglePayment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	acc, err := h.accounts.TogglePayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, "accounts", "payment", err)
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Account: acc})
}

// @Summary      Установить купленные дни
// @Tags         Accounts
// @Accept       json
// @Param        id    path  string                true  "ID записи"
// @Param        body  body  purchasedDaysRequest  true  "Дни"
// @Success      204
// @Security     BearerAuth
// @Router       /api/accounts/{id}/purchased-days [put]
func (h *AccountHandler) SetPurchasedDays(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req purchasedDaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Days must be a positive number.")
		return
	}
	if err := h.accounts.SetPurchasedDays(c.Request.Context(), actor, c.Param("id"), req.Days); err != nil {
		respondError(c, "accounts", "purchased_days", err)
		return
	}
	c.Status(http.StatusNoContent)
}
