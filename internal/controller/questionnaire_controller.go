package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// 请求体上限
const maxBodyBytes = 2 << 20

// store 不可用时建议客户端的重试间隔（秒）
const storeRetryAfter = 30

type QuestionnaireController struct {
	Service *service.QuestionnaireService
}

func NewQuestionnaireController(svc *service.QuestionnaireService) *QuestionnaireController {
	return &QuestionnaireController{Service: svc}
}

// SubmitResponse 提交结果
type SubmitResponse struct {
	Success         bool `json:"success"`
	QuestionnaireID uint `json:"questionnaire_id"`
	Duplicate       bool `json:"duplicate,omitempty"`
}

// @Summary 提交问卷
// @Description 规范化、校验并评分后保存。带 submission_id 的重复提交返回原记录（200, duplicate=true）
// @Tags 问卷
// @Accept json
// @Produce json
// @Param body body model.Submission true "问卷数据"
// @Success 201 {object} SubmitResponse
// @Success 200 {object} SubmitResponse
// @Failure 400 {object} util.ErrorResponse
// @Failure 500 {object} util.ErrorResponse
// @Router /api/submit [post]
func (c *QuestionnaireController) Submit(ctx *gin.Context) {
	payload, err := decodePayload(ctx)
	if err != nil {
		util.BadRequest(ctx, err.Error(), err.Error())
		return
	}

	res, err := c.Service.Submit(ctx.Request.Context(), payload)
	if err != nil {
		respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	ctx.JSON(status, SubmitResponse{
		Success:         true,
		QuestionnaireID: res.ID,
		Duplicate:       res.Duplicate,
	})
}

// decodePayload 数字保留为 json.Number，由规范化阶段转换
func decodePayload(ctx *gin.Context) (map[string]interface{}, error) {
	if ctx.Request.Body == nil {
		return nil, errors.New("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBodyBytes))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.New("request body must be a JSON object: " + err.Error())
	}
	if payload == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return payload, nil
}

// @Summary 获取问卷详情
// @Description 返回保存的规范化问卷 JSON
// @Tags 问卷
// @Produce json
// @Param id path int true "问卷ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.ErrorResponse
// @Router /api/questionnaire/{id} [get]
func (c *QuestionnaireController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid id", "id: must be a positive integer")
		return
	}

	data, err := c.Service.Get(ctx.Request.Context(), uint(id))
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, data)
}

// @Summary 问卷列表
// @Tags 问卷
// @Produce json
// @Param kind query string false "问卷类型"
// @Param grade query string false "年级"
// @Param search query string false "姓名关键字"
// @Param date_from query string false "起始日期 YYYY-MM-DD"
// @Param date_to query string false "截止日期 YYYY-MM-DD（含）"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量，最大100" default(20)
// @Success 200 {object} util.PageResponse
// @Router /api/questionnaires [get]
func (c *QuestionnaireController) List(ctx *gin.Context) {
	var q service.ListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	// 兼容旧参数名
	if q.Kind == "" {
		q.Kind = ctx.Query("type")
	}

	list, pagination, err := c.Service.List(ctx.Request.Context(), q)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Page(ctx, list, pagination)
}

// @Summary 列表筛选项
// @Description 已有的问卷类型、年级及提交日期范围
// @Tags 问卷
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/questionnaires/filters [get]
func (c *QuestionnaireController) FilterOptions(ctx *gin.Context) {
	opts, err := c.Service.FilterOptions(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, opts)
}

// @Summary 支持的问卷结构
// @Tags 问卷
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/schemas [get]
func (c *QuestionnaireController) Schemas(ctx *gin.Context) {
	util.Success(ctx, c.Service.Schemas())
}

// respondError 结构错误与校验错误返回 400，其余按类型映射
func respondError(ctx *gin.Context, err error) {
	var verr *util.ValidationError
	switch {
	case errors.As(err, &verr):
		util.BadRequest(ctx, verr.Message, verr.Details()...)
	case util.IsStructural(err):
		util.BadRequest(ctx, err.Error(), err.Error())
	case errors.Is(err, util.ErrQuestionnaireNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrStoreUnavailable):
		util.FailRetry(ctx, http.StatusServiceUnavailable, util.CodeServer, "", storeRetryAfter)
	case errors.Is(err, util.ErrStorageNotConfigured):
		util.Fail(ctx, http.StatusUnprocessableEntity, util.CodeBusiness, err.Error(), nil)
	default:
		util.InternalServerError(ctx, err)
	}
}
