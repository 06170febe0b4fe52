package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ninex/internal/airtable"
)

type ConfigHandler struct {
	token   string
	baseURL string
	apiURL  string

	// проверка новых учётных данных; в тестах подменяется
	probe func(ctx context.Context, token, tableURL string) error
}

func NewConfigHandler(token, baseURL, apiURL string, timeout time.Duration) *ConfigHandler {
	return &ConfigHandler{
		token:   token,
		baseURL: baseURL,
		apiURL:  strings.TrimRight(apiURL, "/"),
		probe: func(ctx context.Context, token, tableURL string) error {
			return airtable.NewClient(token, tableURL, timeout).Probe(ctx)
		},
	}
}

type ConfigUpdateRequest struct {
	NewToken   string `json:"newToken"`
	NewBaseID  string `json:"newBaseId"`
	NewTableID string `json:"newTableId"`
}

// @Summary      Текущие учётные данные хранилища
// @Description  Возвращает "token\nbaseURL" текстом. Требует X-Config-Secret.
// @Tags         Config
// @Produce      plain
// @Success      200  {string}  string
// @Failure      401  {object}  map[string]interface{}
// @Router       /api/config [get]
func (h *ConfigHandler) Get(c *gin.Context) {
	if h.token == "" || h.baseURL == "" {
		errorJSON(c, http.StatusInternalServerError, "Server configuration error - missing environment variables")
		return
	}
	c.String(http.StatusOK, "%s\n%s", h.token, h.baseURL)
}

// @Summary      Проверка новых учётных данных
// @Description  Проверяет token/base/table пробным запросом и возвращает инструкции по обновлению окружения.
// @Tags         Config
// @Accept       json
// @Produce      json
// @Param        body  body      ConfigUpdateRequest  true  "Новые учётные данные"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]interface{}
// @Router       /api/config [post]
func (h *ConfigHandler) Validate(c *gin.Context) {
	var req ConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewToken == "" || req.NewBaseID == "" || req.NewTableID == "" {
		errorJSON(c, http.StatusBadRequest, "Missing required fields: newToken, newBaseId, newTableId")
		return
	}

	newBaseURL := fmt.Sprintf("%s/%s/%s", h.apiURL, req.NewBaseID, req.NewTableID)
	if err := h.probe(c.Request.Context(), req.NewToken, newBaseURL); err != nil {
		log.Printf("[config][validate] probe failed url=%s: err=%v", newBaseURL, err)
		errorJSON(c, http.StatusBadRequest, "Invalid Airtable credentials. Please verify token, base ID, and table ID.")
		return
	}
	log.Printf("[config][validate] credentials ok url=%s", newBaseURL)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Credentials validated successfully",
		"instructions": "Please update the following environment variables:\n" +
			"AIRTABLE_API_TOKEN=" + req.NewToken + "\n" +
			"AIRTABLE_BASE_ID=" + req.NewBaseID + "\n" +
			"AIRTABLE_TABLE_ID=" + req.NewTableID + "\n\n" +
			"After updating, restart the service.",
		"newToken":   req.NewToken,
		"newBaseId":  req.NewBaseID,
		"newTableId": req.NewTableID,
		"newBaseUrl": newBaseURL,
	})
}
