package controller

import (
	"context"
	"time"

	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

type HealthController struct {
	Service *service.QuestionnaireService
	Redis   *redis.Client
}

func NewHealthController(svc *service.QuestionnaireService, rdb *redis.Client) *HealthController {
	return &HealthController{Service: svc, Redis: rdb}
}

// @Summary 健康检查
// @Description 检查数据库（及启用时的 redis）状态，数据库不可用时返回 503
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.ErrorResponse
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthTimeout)
	defer cancel()

	// 检查数据库连接
	if err := c.Service.Ping(pingCtx); err != nil {
		logger.Log.Warn("Health check failed", zap.Error(err))
		respondError(ctx, err)
		return
	}

	components := gin.H{"database": "up"}
	if c.Redis != nil {
		// redis 只用作缓存，不可用时降级
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			components["redis"] = "down"
		} else {
			components["redis"] = "up"
		}
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
