package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/personaforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/personaforge-backend/internal/http/middleware"
	"github.com/yungbote/personaforge-backend/internal/observability"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	CORSOrigins []string
	// ServiceName enables otelgin spans when non-empty.
	ServiceName string
	Metrics     *observability.Metrics

	HealthHandler  *httpH.HealthHandler
	CascadeHandler *httpH.CascadeHandler
	CompanyHandler *httpH.CompanyHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.CascadeHandler != nil {
			api.GET("/cascade", cfg.CascadeHandler.Stages)
			api.POST("/cascade", cfg.CascadeHandler.Trigger)
			api.GET("/cascade/runs/:id", cfg.CascadeHandler.GetRun)
		}

		if cfg.CompanyHandler != nil {
			api.GET("/companies", cfg.CompanyHandler.List)
			api.POST("/companies", cfg.CompanyHandler.Create)
			api.GET("/companies/:code", cfg.CompanyHandler.Get)
			api.PATCH("/companies/:code", cfg.CompanyHandler.Update)
			api.GET("/companies/:code/status", cfg.CompanyHandler.Status)
			api.GET("/companies/:code/personas", cfg.CompanyHandler.Personas)
			api.GET("/companies/:code/runs", cfg.CompanyHandler.Runs)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
