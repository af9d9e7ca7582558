package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/server/handlers"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Webhook      *handlers.WebhookHandler
	Applications *handlers.ApplicationHandler
	Catalog      *handlers.CatalogHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/webhook", h.Webhook.Verify)
	r.POST("/webhook", h.Webhook.Receive)
	r.POST("/send-message", h.Webhook.SendMessage)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if h.Catalog != nil {
		catalog := r.Group("/catalog")
		catalog.GET("/products", h.Catalog.Products)
		catalog.GET("/lots", h.Catalog.Lots)
	}

	apps := r.Group("/applications")
	apps.POST("", h.Applications.Create)
	apps.GET("", h.Applications.List)
	apps.GET("/:id", h.Applications.Get)
	apps.PUT("/:id/mixtures", h.Applications.UpdateMixtures)
	apps.GET("/:id/purchase-list", h.Applications.PurchaseList)
	apps.POST("/:id/start", h.Applications.Start)
	apps.POST("/:id/movements", h.Applications.RecordMovement)
	apps.GET("/:id/movements", h.Applications.ListMovements)
	apps.DELETE("/:id/movements/:movementID", h.Applications.DeleteMovement)
	apps.GET("/:id/progress", h.Applications.Progress)
	apps.POST("/:id/close", h.Applications.Close)
	apps.POST("/:id/approve", h.Applications.Approve)
	apps.GET("/:id/report", h.Applications.Report)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
