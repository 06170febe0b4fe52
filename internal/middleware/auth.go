package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ninex/internal/models"
	"ninex/internal/utils"
)

const actorKey = "actor"

type Claims struct {
	AccountID string      `json:"account_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{key: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the account; the jti doubles as the listing session id.
func (s *Sessions) Issue(a *models.Account) (string, time.Time, error) {
	jti, err := utils.NewTokenID(16)
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		AccountID: a.ID,
		Username:  a.Username,
		Role:      a.AccountType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Sessions) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// принимаем только HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.AccountID == "" || claims.ID == "" {
		return nil, errors.New("invalid session claims")
	}
	return claims, nil
}

func AuthMiddleware(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		// preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abort(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		claims, err := s.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, http.StatusUnauthorized, "Session expired. Please log in again.")
			return
		}

		c.Set(actorKey, models.Actor{
			ID:       claims.AccountID,
			Username: claims.Username,
			Role:     claims.Role,
			Session:  claims.ID,
		})
		c.Next()
	}
}

// ActorFrom returns the identity stored by AuthMiddleware.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	a, ok := v.(models.Actor)
	return a, ok
}

// SetActor is used by tests and internal callers that authenticate by other means.
func SetActor(c *gin.Context, a models.Actor) {
	c.Set(actorKey, a)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": msg}})
}
