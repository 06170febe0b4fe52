package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ninex/internal/models"
)

func newRouter(s *Sessions, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	api := r.Group("/api", AuthMiddleware(s))
	handlers := append(extra, func(c *gin.Context) {
		a, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"username": a.Username, "role": a.Role, "session": a.Session})
	})
	api.GET("/me", handlers...)
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessions_IssueAndParse(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	token, exp, err := s.Issue(&models.Account{ID: "rec1", Username: "boss", AccountType: models.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "rec1", claims.AccountID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Len(t, claims.ID, 32)

	_, err = NewSessions("other", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestSessions_Expired(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return issued }
	token, _, err := s.Issue(&models.Account{ID: "rec1", Username: "u", AccountType: models.RoleGod})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Parse(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	r := newRouter(s)

	assert.Equal(t, http.StatusOK, get(r, "/healthz", "").Code)

	w := get(r, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization")

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/me", "garbage").Code)

	token, _, err := s.Issue(&models.Account{ID: "rec9", Username: "sel1", AccountType: models.RoleSeller})
	require.NoError(t, err)
	w = get(r, "/api/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"sel1"`)
	assert.Contains(t, w.Body.String(), `"role":"seller"`)
}

func TestRequireRoles(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	r := newRouter(s, RequireRoles(models.RoleGod, models.RoleAdmin))

	seller, _, _ := s.Issue(&models.Account{ID: "a", Username: "s", AccountType: models.RoleSeller})
	admin, _, _ := s.Issue(&models.Account{ID: "b", Username: "a", AccountType: models.RoleAdmin})

	assert.Equal(t, http.StatusForbidden, get(r, "/api/me", seller).Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/me", admin).Code)
}

func TestRequireConfigSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"not configured", "", "x", http.StatusInternalServerError},
		{"wrong", "s3cret", "nope", http.StatusUnauthorized},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"ok", "s3cret", "s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/api/config", RequireConfigSecret(tc.secret), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
			if tc.header != "" {
				req.Header.Set("X-Config-Secret", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
