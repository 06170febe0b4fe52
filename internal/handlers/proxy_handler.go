package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const maxProxyBody = 4 << 20

var proxyPassHeaders = []string{
	"Date",
	"Etag",
	"Content-Type",
	"Airtable-Rate-Limit-Reset",
	"Airtable-Rate-Limit-Remaining",
}

// ProxyHandler forwards panel requests to the record store with the server-held token.
type ProxyHandler struct {
	token   string
	allowed *url.URL
	client  *http.Client
}

func NewProxyHandler(token, apiURL string, timeout time.Duration) (*ProxyHandler, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, err
	}
	return &ProxyHandler{token: token, allowed: u, client: &http.Client{Timeout: timeout}}, nil
}

// target accepts only URLs on the configured API host and under its path.
func (h *ProxyHandler) target(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.User != nil {
		return nil, false
	}
	if !strings.EqualFold(u.Scheme, h.allowed.Scheme) || !strings.EqualFold(u.Host, h.allowed.Host) {
		return nil, false
	}
	// ".." сворачивается до проверки префикса
	clean := path.Clean("/" + u.Path)
	prefix := strings.TrimRight(h.allowed.Path, "/") + "/"
	if !strings.HasPrefix(clean, prefix) {
		return nil, false
	}
	u.Path, u.RawPath = clean, ""
	return u, true
}

// @Summary      Прокси к хранилищу
// @Description  Пересылает запрос на X-Airtable-Url с серверным токеном.
// @Tags         Proxy
// @Produce      json
// @Param        X-Airtable-Url  header  string  true  "Целевой URL"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Security     BearerAuth
// @Router       /api/proxy [get]
func (h *ProxyHandler) Forward(c *gin.Context) {
	raw := c.GetHeader("X-Airtable-Url")
	if raw == "" {
		errorJSON(c, http.StatusBadRequest, "Configuration error: Airtable URL is missing.")
		return
	}
	if h.token == "" {
		errorJSON(c, http.StatusInternalServerError, "Security Alert: Server API Token is not configured.")
		return
	}
	u, ok := h.target(raw)
	if !ok {
		log.Printf("[proxy] rejected url=%q", raw)
		errorJSON(c, http.StatusBadRequest, "Airtable URL is not allowed.")
		return
	}

	var body io.Reader
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead && c.Request.Body != nil {
		b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProxyBody))
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Failed to read request body")
			return
		}
		if len(b) > 0 {
			body = bytes.NewReader(b)
		}
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, u.String(), body)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid proxy request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("[proxy] upstream failed method=%s url=%s: err=%v", c.Request.Method, u.Redacted(), err)
		errorJSON(c, http.StatusInternalServerError, "An unexpected internal server error occurred.")
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorJSON(c, http.StatusBadGateway, "Failed to read upstream response")
		return
	}

	for _, k := range proxyPassHeaders {
		if v := resp.Header.Get(k); v != "" {
			c.Header(k, v)
		}
	}
	// не-JSON ответ заворачиваем в {"raw": ...}
	if len(data) == 0 || !json.Valid(data) {
		c.JSON(resp.StatusCode, gin.H{"raw": string(data)})
		return
	}
	c.Data(resp.StatusCode, "application/json", data)
}
