package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestAuth(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	token, err := tokens.Issue(&models.User{ID: 4, Name: "Asha", Role: models.RoleCitizen})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Auth(tokens, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).UserID})
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK},
		{"query token", "", "?token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	citizen, _ := tokens.Issue(&models.User{ID: 1, Role: models.RoleCitizen})
	admin, _ := tokens.Issue(&models.User{ID: 2, Role: models.RoleAdmin})

	log := zap.NewNop()
	r := gin.New()
	r.GET("/admin", Auth(tokens, log), RequireRole(log, models.RoleAdmin), okHandler)

	for token, status := range map[string]int{citizen: http.StatusForbidden, admin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewSlidingWindow(2, time.Minute, func() time.Time { return now })

	r := gin.New()
	r.GET("/", RateLimit("ip", limiter, ByIP, zap.NewNop()), okHandler)

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111").Code)
	w := do("10.0.0.1:2222")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate_limited"}`, w.Body.String())
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	// IPv4-mapped form of the same client shares the quota
	assert.Equal(t, http.StatusTooManyRequests, do("[::ffff:10.0.0.1]:4444").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111").Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	broken := ratelimit.Func(func(context.Context, string) (ratelimit.Result, error) {
		return ratelimit.Result{}, errors.New("redis down")
	})
	r := gin.New()
	r.GET("/", RateLimit("ip", broken, ByIP, zap.NewNop()), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestByIdentity(t *testing.T) {
	var keys []string
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	token, _ := tokens.Issue(&models.User{ID: 9, Role: models.RoleWorker})

	capture := func(c *gin.Context) { keys = append(keys, ByIdentity(c)) }
	r := gin.New()
	r.GET("/public/:id", capture)
	r.GET("/anon", capture)
	r.GET("/private", Auth(tokens, zap.NewNop()), capture)

	for _, path := range []string{"/public/42", "/anon"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.7:5000"
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.RemoteAddr = "192.0.2.7:5000"
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{
		"192.0.2.7:42",
		"192.0.2.7:anonymous",
		"192.0.2.7:user:9",
	}, keys)
}
