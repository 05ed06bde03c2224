package http_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"wove-server/internal/config"
	deliveryhttp "wove-server/internal/delivery/http"
	imocks "wove-server/internal/interfaces/mocks"
	"wove-server/internal/models"
	smocks "wove-server/internal/service/mocks"
)

func newLimiterRouter(store *imocks.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		RateLimitAnonPoints:      5,
		RateLimitAuthPoints:      10,
		RateLimitAuthRoutePoints: 3,
		RateLimitWindowSec:       60,
		RateLimitBlockSec:        300,
		RateLimitAuthBlockSec:    900,
	}
	rl := deliveryhttp.NewRateLimiter(store, cfg, zap.NewNop())

	router := gin.New()
	router.GET("/api/ping", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/auth/login", rl.AuthRouteMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRateLimiter(t *testing.T) {
	t.Run("Request within the budget passes", func(t *testing.T) {
		store := new(imocks.RateLimitStore)
		store.On("IsBlocked", mock.Anything, mock.Anything).Return(false, nil).Once()
		store.On("IncrementWindow", mock.Anything, mock.Anything, 60).Return(int64(1), nil).Once()

		w := httptest.NewRecorder()
		newLimiterRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Blocked client gets 429 without touching the window", func(t *testing.T) {
		store := new(imocks.RateLimitStore)
		store.On("IsBlocked", mock.Anything, mock.Anything).Return(true, nil).Once()

		w := httptest.NewRecorder()
		newLimiterRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		store.AssertNotCalled(t, "IncrementWindow", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Exceeding the budget blocks the client", func(t *testing.T) {
		store := new(imocks.RateLimitStore)
		store.On("IsBlocked", mock.Anything, mock.Anything).Return(false, nil).Once()
		store.On("IncrementWindow", mock.Anything, mock.Anything, 60).Return(int64(6), nil).Once()
		store.On("Block", mock.Anything, mock.Anything, 300).Return(nil).Once()

		w := httptest.NewRecorder()
		newLimiterRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Store outage lets traffic through", func(t *testing.T) {
		store := new(imocks.RateLimitStore)
		store.On("IsBlocked", mock.Anything, mock.Anything).
			Return(false, errors.New("redis down")).Once()

		w := httptest.NewRecorder()
		newLimiterRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Auth routes use the tighter budget and longer block", func(t *testing.T) {
		store := new(imocks.RateLimitStore)
		store.On("IsBlocked", mock.Anything, mock.MatchedBy(func(key string) bool {
			return len(key) > 5 && key[:5] == "auth:"
		})).Return(false, nil).Once()
		store.On("IncrementWindow", mock.Anything, mock.Anything, 60).Return(int64(4), nil).Once()
		store.On("Block", mock.Anything, mock.Anything, 900).Return(nil).Once()

		w := httptest.NewRecorder()
		newLimiterRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		store.AssertExpectations(t)
	})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(auth *smocks.AuthService) *gin.Engine {
		router := gin.New()
		router.GET("/protected", deliveryhttp.AuthMiddleware(auth), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("Missing Authorization header is rejected", func(t *testing.T) {
		auth := new(smocks.AuthService)
		w := httptest.NewRecorder()
		newRouter(auth).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		auth.AssertNotCalled(t, "VerifyAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("Malformed header is rejected", func(t *testing.T) {
		auth := new(smocks.AuthService)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		newRouter(auth).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Invalid token is rejected", func(t *testing.T) {
		auth := new(smocks.AuthService)
		auth.On("VerifyAccessToken", mock.Anything, "bad-token").
			Return(nil, models.ErrTokenInvalid).Once()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()
		newRouter(auth).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid token passes through", func(t *testing.T) {
		auth := new(smocks.AuthService)
		auth.On("VerifyAccessToken", mock.Anything, "good-token").
			Return(&models.Claims{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		newRouter(auth).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
