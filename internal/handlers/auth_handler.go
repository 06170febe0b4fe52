package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ninex/internal/middleware"
	"ninex/internal/models"
	"ninex/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	sessions    *middleware.Sessions
}

func NewAuthHandler(authService services.AuthService, sessions *middleware.Sessions) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

// @Summary      Вход в систему (2FA)
// @Description  Шаг 1: username+password, код уходит в Telegram. Шаг 2: username+otp, возвращает сессию.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]interface{}
// @Failure      403    {object}  map[string]interface{}
// @Failure      404    {object}  map[string]interface{}
// @Router       /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	start := time.Now()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][login] bad request: bind json failed: err=%v", err)
		errorJSON(c, http.StatusBadRequest, "Invalid request.")
		return
	}
	username := strings.TrimSpace(req.Username)

	switch {
	case req.Password != "":
		log.Printf("[auth][login] code requested username=%q", username)
		if err := h.authService.RequestLoginCode(c.Request.Context(), username, req.Password); err != nil {
			respondError(c, "auth", "login", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "An OTP has been sent to your Telegram."})

	case req.OTP != "":
		acc, err := h.authService.VerifyLoginCode(c.Request.Context(), username, strings.TrimSpace(req.OTP))
		if err != nil {
			respondError(c, "auth", "login", err)
			return
		}
		token, exp, err := h.sessions.Issue(acc)
		if err != nil {
			log.Printf("[auth][login] sign token failed username=%q: err=%v", username, err)
			errorJSON(c, http.StatusInternalServerError, "Failed to generate session token")
			return
		}
		log.Printf("[auth][login] success username=%q role=%s took=%s",
			username, acc.AccountType, time.Since(start).Truncate(time.Millisecond))
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"user":       acc, // пароль и OTP помечены json:"-"
			"token":      token,
			"expires_at": exp.UTC().Format(time.RFC3339),
		})

	default:
		errorJSON(c, http.StatusBadRequest, "Invalid request.")
	}
}

// @Summary      Сброс пароля через Telegram
// @Description  Шаг 1: username+telegramId, код уходит в Telegram. Шаг 2: username+otp+newPassword.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.PasswordResetRequest  true  "Данные для сброса"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]interface{}
// @Failure      403   {object}  map[string]interface{}
// @Failure      429   {object}  map[string]interface{}
// @Router       /api/password-reset [post]
func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request.")
		return
	}
	username := strings.TrimSpace(req.Username)

	switch {
	case req.OTP != "" && req.NewPassword != "":
		if err := h.authService.ResetPassword(c.Request.Context(), username, strings.TrimSpace(req.OTP), req.NewPassword); err != nil {
			respondError(c, "auth", "reset", err)
			return
		}
		log.Printf("[auth][reset] password changed username=%q", username)
		c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully."})

	case req.TelegramID != "":
		if err := h.authService.RequestResetCode(c.Request.Context(), username, strings.TrimSpace(req.TelegramID)); err != nil {
			respondError(c, "auth", "reset", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "An OTP has been sent to your registered Telegram account."})

	default:
		errorJSON(c, http.StatusBadRequest, "Invalid request.")
	}
}
