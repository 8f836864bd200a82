package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	middleware "github.com/richardliu001/onboarding-service/http"
	"github.com/richardliu001/onboarding-service/internal/config"
	"go.uber.org/zap"
)

// NewRouter wires middleware, the onboarding API and /metrics. gatherer may be nil.
func NewRouter(svc Onboarding, rl config.RateLimitConfig, gatherer prometheus.Gatherer, log *zap.SugaredLogger) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svc, log)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
