package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"purchase-order-service/internal/service"
	"purchase-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService *service.OrderService
	dependencies map[string]Pinger
}

// NewHandler creates a new HTTP handler. dependencies are pinged by the
// readiness probe, keyed by a display name.
func NewHandler(orderService *service.OrderService, dependencies map[string]Pinger) *Handler {
	return &Handler{
		orderService: orderService,
		dependencies: dependencies,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(tracingMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(requireActor())
	{
		v1.POST("/orders", h.createDraft)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.PUT("/orders/:id/shipping-cost", h.setShippingCost)
		v1.POST("/orders/:id/submit", h.submit)
		v1.POST("/orders/:id/confirm", h.confirm)
		v1.POST("/orders/:id/reject", h.reject)
		v1.POST("/orders/:id/send-for-review", h.sendForReview)
		v1.POST("/orders/:id/approve-changes", h.approveChanges)
		v1.POST("/orders/:id/reject-changes", h.rejectChanges)
		v1.POST("/orders/:id/start-processing", h.startProcessing)
		v1.POST("/orders/:id/ship", h.ship)
		v1.POST("/orders/:id/confirm-delivery", h.confirmDelivery)
		v1.POST("/orders/:id/complete", h.complete)
		v1.POST("/orders/:id/mark-paid", h.markPaid)
		v1.POST("/orders/:id/cancel", h.cancel)
		v1.POST("/orders/:id/substitutions/decide", h.decideSubstitutions)

		v1.POST("/orders/:id/items", h.addDraftItem)
		v1.PATCH("/orders/:id/items/:itemId", h.setDraftItemQuantity)
		v1.DELETE("/orders/:id/items/:itemId", h.removeDraftItem)
		v1.POST("/orders/:id/items/:itemId/accept", h.acceptItem)
		v1.POST("/orders/:id/items/:itemId/reject", h.rejectItem)
		v1.POST("/orders/:id/items/:itemId/substitute", h.substituteItem)
		v1.POST("/orders/:id/items/:itemId/adjust", h.adjustItem)
		v1.POST("/orders/:id/items/:itemId/notes", h.addItemNote)
		v1.POST("/orders/:id/items/:itemId/substitution/accept", h.acceptSubstitution)
		v1.POST("/orders/:id/items/:itemId/substitution/reject", h.rejectSubstitution)

		v1.POST("/bulk/orders/confirm", h.bulkConfirm)
		v1.POST("/bulk/orders/ship", h.bulkShip)
		v1.POST("/bulk/orders/mark-paid", h.bulkMarkPaid)

		v1.GET("/summaries/outstanding", h.outstanding)
		v1.GET("/summaries/pipeline", h.pipeline)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.dependencies))
	ready := true
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// tracingMiddleware continues an incoming trace and starts a server span.
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := util.GetTracer().Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger writes one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			util.GetLogger().Error("HTTP request", fields...)
			return
		}
		util.GetLogger().Debug("HTTP request", fields...)
	}
}
