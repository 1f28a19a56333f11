package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairchat/internal/metrics"
	"pairchat/internal/service"
)

// RouterConfig agrupa las opciones transversales del router.
type RouterConfig struct {
	AllowedOrigin string
	JWT           *service.JWTService
	Metrics       *metrics.Metrics
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	cfg RouterConfig,
	userH *UserHandler,
	chatH *ChatHandler,
	messageH *MessageHandler,
	healthH *HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery, CORS y metricas.
	r.Use(
		zapLoggerMiddleware(logger),
		gin.Recovery(),
		corsMiddleware(cfg.AllowedOrigin),
		metricsMiddleware(cfg.Metrics),
	)

	r.GET("/healthz", healthH.Health)
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	api := r.Group("", jsonContentTypeMiddleware(), OptionalJWTAuthMiddleware(cfg.JWT))

	api.POST("/users", userH.CreateUser)
	api.GET("/users/:userId/chats", userH.ListUserChats)

	api.POST("/chats", chatH.FindOrCreateChat)
	api.GET("/chats/:chatId", chatH.GetChat)
	api.GET("/chats/:chatId/messages", chatH.ListChatMessages)

	api.POST("/messages", messageH.PostMessage)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// corsMiddleware permite un unico origen configurado. Las preflight OPTIONS se
// responden aqui mismo.
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowedOrigin != "" && (allowedOrigin == "*" || origin == allowedOrigin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// metricsMiddleware registra cada request por plantilla de ruta.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
