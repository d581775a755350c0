package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/config"
	"zkv-router/internal/handlers"
	"zkv-router/internal/middleware"
)

// corsMiddleware an empty origin list allows any origin
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSpace(o)] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case origin != "":
			logrus.WithFields(logrus.Fields{
				"request_origin": origin,
				"path":           c.Request.URL.Path,
			}).Warn("🚫 CORS: Origin not in whitelist")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires every HTTP route.
func SetupRouter(
	cfg config.ServerConfig,
	proofHandler *handlers.ProofHandler,
	wsHandler *handlers.WebSocketHandler,
	logger *logrus.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(cfg.AllowedOrigins))

	// ============ Unauthenticated ============
	r.GET("/ping", handlers.PingHandler)
	r.GET("/health", handlers.HealthCheckHandler)

	localhostOnly := middleware.NewLocalhostOnly(logger, cfg.MetricsAllowedIPs)
	r.GET("/metrics", localhostOnly.Restrict(), gin.WrapH(promhttp.Handler()))

	// ============ API v1 ============
	auth := middleware.NewAuthMiddleware(cfg.JWTSecret, logger)
	api := r.Group("/api/v1", auth.RequireAuth())
	{
		requests := api.Group("/requests/:id")
		requests.POST("/convert", proofHandler.ConvertHandler)
		requests.POST("/submit", proofHandler.SubmitHandler)
		requests.POST("/remark", proofHandler.RemarkHandler)
		requests.GET("/proof", proofHandler.GetProofHandler)

		api.GET("/pallets", proofHandler.ListPalletsHandler)
		api.GET("/submissions", proofHandler.HistoryHandler)
		api.GET("/events/ws", wsHandler.HandleEvents)
	}

	return r
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"client_ip": c.ClientIP(),
		}).Debug("🌐 request handled")
	}
}
