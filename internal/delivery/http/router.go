package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"wove-server/internal/config"
)

// RouterDeps собирает все обработчики и middleware, нужные роутеру.
type RouterDeps struct {
	Auth         *AuthHandler
	Story        *StoryHandler
	Narrative    *NarrativeHandler
	Media        *MediaHandler
	Notification *NotificationHandler
	Moderation   *ModerationHandler
	Parental     *ParentalHandler

	AuthMiddleware gin.HandlerFunc
	RateLimiter    *RateLimiter
}

// NewRouter строит gin.Engine со всеми маршрутами сервера.
func NewRouter(cfg *config.Config, deps RouterDeps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(ZapLoggingMiddleware(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		logger.Info("ALLOWED_ORIGINS not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// Auth-маршруты лимитируются жестче остальных.
	auth := router.Group("/auth")
	auth.Use(deps.RateLimiter.AuthRouteMiddleware())
	deps.Auth.RegisterRoutes(auth, deps.AuthMiddleware)

	api := router.Group("/api")
	api.Use(deps.AuthMiddleware)
	api.Use(deps.RateLimiter.Middleware())

	api.GET("/me", deps.Auth.Me)

	stories := api.Group("/stories")
	deps.Story.RegisterRoutes(stories)
	deps.Narrative.RegisterRoutes(stories)

	media := api.Group("/media")
	deps.Media.RegisterRoutes(stories, media)

	notifications := api.Group("/notifications")
	deps.Notification.RegisterRoutes(notifications)

	reports := api.Group("/reports")
	users := api.Group("/users")
	deps.Moderation.RegisterRoutes(reports, users)

	parental := api.Group("/parental")
	deps.Parental.RegisterRoutes(parental)

	// Prometheus-метрики вешаем после регистрации роутов, чтобы
	// middleware видел итоговые шаблоны путей.
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	return router
}
