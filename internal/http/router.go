package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/amitsajwan/AgenticAiProperties/internal/config"
	"github.com/amitsajwan/AgenticAiProperties/internal/http/handler"
	httpmiddleware "github.com/amitsajwan/AgenticAiProperties/internal/http/middleware"
	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
	"github.com/amitsajwan/AgenticAiProperties/internal/middleware"
)

// NewRouter wires Gin routes and middleware. The webhook endpoints stay
// outside the rate limiter; the platform retries throttled deliveries
// anyway and the signature check is the real gate.
func NewRouter(cfg config.Config, webhookHandler *handler.WebhookHandler, agentHandler *handler.AgentHandler, rateLimiter *middleware.RateLimiter, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	webhooks := r.Group("/webhooks")
	{
		webhooks.GET("/facebook", webhookHandler.Verify)
		webhooks.POST("/facebook", webhookHandler.Deliver)
	}

	api := r.Group("/api/facebook")
	if rateLimiter != nil {
		api.Use(rateLimiter.Handler())
	}
	{
		api.GET("/status/agents/:agent_id", agentHandler.Status)
		api.POST("/agents/:agent_id/page", agentHandler.ConnectPage)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return r
}
