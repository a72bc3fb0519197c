package controller

import (
	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	Service  *service.QuestionnaireService
	Exporter *service.BackupService
}

func NewAdminController(svc *service.QuestionnaireService, backup *service.BackupService) *AdminController {
	return &AdminController{Service: svc, Exporter: backup}
}

// @Summary 提交统计
// @Description 总数、今日提交数及按类型计数
// @Tags 管理
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/admin/statistics [get]
func (c *AdminController) Statistics(ctx *gin.Context) {
	stats, err := c.Service.AdminStatistics(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 导出备份
// @Description 将全部问卷导出为 JSON 快照并写入配置的存储（local/minio/oss）
// @Tags 管理
// @Produce json
// @Success 201 {object} util.Response
// @Failure 422 {object} util.ErrorResponse
// @Router /api/admin/backup [post]
func (c *AdminController) Backup(ctx *gin.Context) {
	if c.Exporter == nil {
		respondError(ctx, util.ErrStorageNotConfigured)
		return
	}
	res, err := c.Exporter.Export(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, res)
}
