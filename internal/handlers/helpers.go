package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ninex/internal/airtable"
	"ninex/internal/middleware"
	"ninex/internal/models"
	"ninex/internal/repositories"
	"ninex/internal/services"
)

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": gin.H{"message": msg}})
}

// statusFor maps service and upstream errors onto HTTP statuses.
func statusFor(err error) int {
	var apiErr *airtable.APIError
	switch {
	case errors.Is(err, services.ErrConfig):
		return http.StatusInternalServerError
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrLoginDenied),
		errors.Is(err, services.ErrResetUnavailable):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrTelegramMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrResendThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrNoTelegram),
		errors.Is(err, services.ErrInsufficientCredits),
		errors.Is(err, services.ErrTooManyAttempts),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrCodeIncorrect):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPartialBatch), errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// messageFor keeps internal details out of 500 responses.
func messageFor(status int, err error) string {
	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) && !errors.Is(err, services.ErrPartialBatch) {
		return apiErr.Message
	}
	if status == http.StatusInternalServerError && !errors.Is(err, services.ErrConfig) {
		return "An internal server error occurred."
	}
	return err.Error()
}

// respondError logs err as [area][op] and writes the mapped status.
func respondError(c *gin.Context, area, op string, err error) {
	status := statusFor(err)
	log.Printf("[%s][%s] status=%d err=%v", area, op, status, err)
	errorJSON(c, status, messageFor(status, err))
}

// respondBatch writes a bulk result; a partial batch still reports what was written.
func respondBatch(c *gin.Context, op string, res *services.BatchResult, err error) {
	if err != nil {
		status := statusFor(err)
		log.Printf("[bulk][%s] status=%d err=%v", op, status, err)
		body := gin.H{"error": gin.H{"message": messageFor(status, err)}}
		if res != nil {
			body["result"] = res
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

func mustActor(c *gin.Context) (models.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		errorJSON(c, http.StatusUnauthorized, "Session expired. Please log in again.")
		return models.Actor{}, false
	}
	return a, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
