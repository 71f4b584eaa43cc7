package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/bancore/bancore/config"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecretKeyAuthMiddleware())
	handler := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) }
	r.GET("/", handler)
	r.GET("/account/balance", handler)
	r.GET("/payment/redirect-success", handler)
	r.POST("/webhooks/gateway", handler)
	return r
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	config.MockConfig(&config.Configuration{Server: config.ServerConfig{Secure: true, SecretKey: "secret-key"}})
	router := testRouter()

	tests := []struct {
		name         string
		method       string
		path         string
		headers      map[string]string
		expectedCode int
	}{
		{"missing key", "GET", "/account/balance", nil, http.StatusUnauthorized},
		{"wrong key", "GET", "/account/balance", map[string]string{KeyHeader: "wrong"}, http.StatusUnauthorized},
		{"valid key", "GET", "/account/balance", map[string]string{KeyHeader: "secret-key"}, http.StatusOK},
		{"root is public", "GET", "/", nil, http.StatusOK},
		{"redirect is public", "GET", "/payment/redirect-success", nil, http.StatusOK},
		{"webhook is public", "POST", "/webhooks/gateway", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(router, tt.method, tt.path, tt.headers)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.Configuration{}))
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) })

	for i := 0; i < 10; i++ {
		resp := serve(r, "GET", "/", nil)
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestRateLimitMiddlewareLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rps := 1.0
	burst := 1
	cleanup := 60
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{
		RequestsPerSecond:  &rps,
		Burst:              &burst,
		CleanupIntervalSec: &cleanup,
	}}
	r := gin.New()
	r.Use(RateLimitMiddleware(conf))
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) })

	first := serve(r, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	limited := false
	for i := 0; i < 5; i++ {
		if serve(r, "GET", "/", nil).Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}
