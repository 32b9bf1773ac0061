package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func protectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWTAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("userID"))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": exp}), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, "other", jwt.MapClaims{"sub": "user-1", "exp": exp}), http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"missing sub", "Bearer " + signed(t, testSecret, jwt.MapClaims{"exp": exp}), http.StatusUnauthorized},
		{"missing exp", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "user-1"}), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			protectedRouter().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user-1", w.Body.String())
			}
		})
	}
}

func TestInternalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sweep", InternalAuth("k3y"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(key string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
		if key != "" {
			req.Header.Set("X-Internal-Key", key)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, do("k3y"))
	assert.Equal(t, http.StatusForbidden, do("nope"))
	assert.Equal(t, http.StatusUnauthorized, do(""))
}

func TestInternalAuth_DisabledWithoutKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sweep", InternalAuth(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
	req.Header.Set("X-Internal-Key", "anything")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(RateLimitConfig{AuthPerMinute: 1, Burst: 2})
	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/api/v1/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/stocks", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(method, path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit(http.MethodPost, "/api/v1/auth/login"))
	assert.Equal(t, http.StatusOK, hit(http.MethodPost, "/api/v1/auth/login"))
	assert.Equal(t, http.StatusTooManyRequests, hit(http.MethodPost, "/api/v1/auth/login"))

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, hit(http.MethodGet, "/api/v1/stocks"), "unlimited by default")
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	rl.getLimiter("/a", "1.2.3.4")
	rl.visitors["1.2.3.4:/a"].lastSeen = time.Now().Add(-time.Hour)
	rl.getLimiter("/b", "1.2.3.4")

	rl.evictIdle(3 * time.Minute)
	assert.Len(t, rl.visitors, 1)
}
