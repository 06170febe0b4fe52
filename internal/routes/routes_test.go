package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	_ "ninex/docs"
	"ninex/internal/handlers"
	"ninex/internal/middleware"
	"ninex/internal/models"
)

func newTestRouter(t *testing.T, sessions *middleware.Sessions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	proxy, err := handlers.NewProxyHandler("tok", "https://api.airtable.com/v0", time.Second)
	require.NoError(t, err)
	limit := func(c *gin.Context) { c.Next() }

	// сервисы не нужны: все проверяемые запросы отсекаются middleware
	return SetupRoutes(gin.New(), sessions, limit, "cfg-secret",
		handlers.NewAuthHandler(nil, sessions),
		handlers.NewConfigHandler("tok", "https://api.airtable.com/v0/app/tbl", "https://api.airtable.com/v0", time.Second),
		proxy,
		handlers.NewAccountHandler(nil),
		handlers.NewReportHandler(nil, nil),
		handlers.NewBulkHandler(nil),
		handlers.NewMaintenanceHandler(nil),
	)
}

func request(r http.Handler, method, path, token string, header map[string]string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes_Guards(t *testing.T) {
	sessions := middleware.NewSessions("secret", time.Hour)
	r := newTestRouter(t, sessions)

	seller, _, err := sessions.Issue(&models.Account{ID: "rec3", Username: "sel1", AccountType: models.RoleSeller})
	require.NoError(t, err)
	admin, _, err := sessions.Issue(&models.Account{ID: "rec2", Username: "boss", AccountType: models.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/healthz", "", nil))

	for _, path := range []string{"/api/me", "/api/accounts", "/api/accounts/count", "/api/maintenance", "/api/proxy"} {
		assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, path, "", nil), path)
	}

	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/api/bulk/extend", seller, nil))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPut, "/api/maintenance", seller, nil))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/api/bulk/approve-payments", admin, nil))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/api/accounts/rec9/payment", admin, nil))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPut, "/api/accounts/rec9/purchased-days", admin, nil))

	// проходит роль, падает на пустом теле
	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodPost, "/api/bulk/extend", admin, nil))

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/config", "", nil))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/config", "", map[string]string{"X-Config-Secret": "cfg-secret"}))

	// прокси с сессией, но без целевого URL
	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodGet, "/api/proxy", seller, nil))
}

func TestRoutes_DocumentedInSwagger(t *testing.T) {
	raw, err := swag.ReadDoc()
	require.NoError(t, err)
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	param := regexp.MustCompile(`:(\w+)`)
	registered := map[string]bool{}
	for _, rt := range newTestRouter(t, middleware.NewSessions("secret", time.Hour)).Routes() {
		if rt.Path == "/healthz" {
			continue
		}
		path := param.ReplaceAllString(rt.Path, "{$1}")
		registered[path] = true
		ops, ok := doc.Paths[path]
		if !assert.True(t, ok, "undocumented route %s", path) {
			continue
		}
		if path == "/api/proxy" {
			continue
		}
		_, ok = ops[strings.ToLower(rt.Method)]
		assert.True(t, ok, "undocumented method %s %s", rt.Method, path)
	}
	for path := range doc.Paths {
		assert.True(t, registered[path], "documented route %s is not registered", path)
	}
}
