package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/config"
	"wove-server/internal/interfaces"
	"wove-server/internal/models"
	"wove-server/internal/service"
)

// Ключи контекста Gin
const (
	ctxUserIDKey      = "user_id"
	ctxUserRolesKey   = "user_roles"
	ctxAccessUUIDKey  = "access_uuid"
	ctxRefreshUUIDKey = "refresh_uuid"
)

// userIDFromContext достает ID аутентифицированного пользователя.
func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func rolesFromContext(c *gin.Context) []string {
	v, ok := c.Get(ctxUserRolesKey)
	if !ok {
		return nil
	}
	roles, _ := v.([]string)
	return roles
}

// AuthMiddleware проверяет Bearer токен и кладет userID и роли в контекст.
func AuthMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleServiceError(c, models.ErrTokenInvalid)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			zap.L().Warn("Invalid Authorization header format")
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleServiceError(c, models.ErrTokenInvalid)
			return
		}

		claims, err := auth.VerifyAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleServiceError(c, err)
			return
		}

		tokenVerificationsTotal.WithLabelValues("success").Inc()
		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxUserRolesKey, claims.Roles)
		c.Set(ctxAccessUUIDKey, claims.ID)
		c.Next()
	}
}

// RequireAgeTier пропускает только пользователей с подтвержденной
// возрастной категорией не ниже требуемой.
func RequireAgeTier(auth service.AuthService, required models.AgeTier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			handleServiceError(c, models.ErrUnauthorized)
			return
		}
		user, err := auth.GetUser(c.Request.Context(), userID)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		if !models.IsAgeTierSufficient(user.VerifiedAgeTier, required) {
			handleServiceError(c, models.ErrAgeTierInsufficient)
			return
		}
		c.Next()
	}
}

// rateLimitTier - параметры одного уровня лимитера.
type rateLimitTier struct {
	name    string
	points  int
	windowS int
	blockS  int
}

// RateLimiter - фиксированное окно поверх Redis с отдельным ключом
// блокировки: превышение бюджета блокирует клиента на blockS секунд
// независимо от сброса окна.
type RateLimiter struct {
	store  interfaces.RateLimitStore
	logger *zap.Logger

	anon      rateLimitTier
	authed    rateLimitTier
	authRoute rateLimitTier
}

func NewRateLimiter(store interfaces.RateLimitStore, cfg *config.Config, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		logger: logger.Named("RateLimiter"),
		anon: rateLimitTier{
			name: "anonymous", points: cfg.RateLimitAnonPoints,
			windowS: cfg.RateLimitWindowSec, blockS: cfg.RateLimitBlockSec,
		},
		authed: rateLimitTier{
			name: "authenticated", points: cfg.RateLimitAuthPoints,
			windowS: cfg.RateLimitWindowSec, blockS: cfg.RateLimitBlockSec,
		},
		authRoute: rateLimitTier{
			name: "auth_route", points: cfg.RateLimitAuthRoutePoints,
			windowS: cfg.RateLimitWindowSec, blockS: cfg.RateLimitAuthBlockSec,
		},
	}
}

// Middleware лимитирует обычные маршруты: анонимный и аутентифицированный
// трафик получают разные бюджеты.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := rl.anon
		principal := "anonymous"
		if userID, ok := userIDFromContext(c); ok {
			tier = rl.authed
			principal = userID.String()
		}
		rl.limit(c, tier, principal)
	}
}

// AuthRouteMiddleware - ужесточенный лимит для /auth/* маршрутов.
func (rl *RateLimiter) AuthRouteMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.limit(c, rl.authRoute, "anonymous")
	}
}

func (rl *RateLimiter) limit(c *gin.Context, tier rateLimitTier, principal string) {
	ctx := c.Request.Context()
	key := fmt.Sprintf("%s:%s", c.ClientIP(), principal)
	if tier.name == "auth_route" {
		key = "auth:" + key
	}

	blocked, err := rl.store.IsBlocked(ctx, key)
	if err != nil {
		// Недоступность Redis не должна ронять трафик
		rl.logger.Error("Rate limiter store unavailable, allowing request", zap.Error(err))
		c.Next()
		return
	}
	if blocked {
		rateLimitRejectionsTotal.WithLabelValues(tier.name).Inc()
		handleServiceError(c, models.ErrRateLimited)
		return
	}

	count, err := rl.store.IncrementWindow(ctx, key, tier.windowS)
	if err != nil {
		rl.logger.Error("Rate limiter store unavailable, allowing request", zap.Error(err))
		c.Next()
		return
	}
	if count > int64(tier.points) {
		if err := rl.store.Block(ctx, key, tier.blockS); err != nil {
			rl.logger.Error("Failed to set rate limit block", zap.Error(err))
		}
		rl.logger.Warn("Rate limit exceeded, client blocked",
			zap.String("key", key),
			zap.String("tier", tier.name),
			zap.Int64("count", count))
		rateLimitRejectionsTotal.WithLabelValues(tier.name).Inc()
		handleServiceError(c, models.ErrRateLimited)
		return
	}

	c.Next()
}

// ZapLoggingMiddleware логирует запросы с помощью zap.
// healthcheck и metrics не логируются.
func ZapLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		c.Next()

		latency := time.Since(start)
		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path = path + "?" + rawQuery
		}

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		requestID := c.Writer.Header().Get("X-Request-ID")
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}
		if requestID == "" {
			requestID = uuid.NewString()
			c.Header("X-Request-ID", requestID)
		}
		fields = append(fields, zap.String("request_id", requestID))

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
				log.Error("Request error", append(fields, zap.Error(ginErr.Err))...)
			}
			return
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("Request completed with server error", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("Request completed with client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}
