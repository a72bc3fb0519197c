package app

import (
	"time"

	"questionnaire_backend/docs"
	"questionnaire_backend/internal/config"
	"questionnaire_backend/pkg/monitoring"
	"questionnaire_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}

	api := router.Group("/api")
	api.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, window))

	a.registerQuestionnaireRoutes(api, c)
	a.registerAdminRoutes(api, c)
}

func (a *App) registerQuestionnaireRoutes(api *gin.RouterGroup, c *controllers) {
	api.GET("/health", c.health.HealthCheck)
	api.GET("/schemas", c.questionnaire.Schemas)

	api.POST("/submit", c.questionnaire.Submit)
	api.POST("/questionnaires", c.questionnaire.Submit)

	api.GET("/questionnaires", c.questionnaire.List)
	api.GET("/questionnaires/filters", c.questionnaire.FilterOptions)
	api.GET("/questionnaires/:id", c.questionnaire.Get)
	api.GET("/questionnaire/:id", c.questionnaire.Get)
}

// 管理接口：认证不在本服务范围内，部署时由网关保护
func (a *App) registerAdminRoutes(api *gin.RouterGroup, c *controllers) {
	admin := api.Group("/admin")
	{
		admin.GET("/statistics", c.admin.Statistics)
		admin.POST("/backup", c.admin.Backup)
	}
}
