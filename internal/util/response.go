package util

import (
	"net/http"
	"time"

	"questionnaire_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 错误码
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeAuth       = "AUTH_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeBusiness   = "BUSINESS_ERROR"
	CodeServer     = "SERVER_ERROR"
)

// 面向用户的错误提示
var userMessages = map[string]string{
	CodeValidation: "输入的数据格式不正确，请检查后重试",
	CodeAuth:       "请先登录后再进行操作",
	CodeNotFound:   "请求的内容不存在或已被删除",
	CodeBusiness:   "操作失败，请检查输入信息",
	CodeServer:     "服务器暂时无法处理您的请求，请稍后重试",
}

func UserMessage(code string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return "操作失败，请稍后重试"
}

// Response 统一成功响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	HasNext  bool  `json:"has_next"`
	HasPrev  bool  `json:"has_prev"`
}

func NewPagination(page, size int, total int64) Pagination {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Pagination{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    pages,
		HasNext:  page < pages,
		HasPrev:  page > 1,
	}
}

// PageResponse 分页响应结构
type PageResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// ErrorBody 错误信息
type ErrorBody struct {
	Code             string   `json:"code"`
	Message          string   `json:"message"`
	TechnicalMessage string   `json:"technical_message,omitempty"`
	Details          []string `json:"details,omitempty"`
	RequestID        string   `json:"request_id"`
}

// ErrorResponse 统一错误响应结构
type ErrorResponse struct {
	Success    bool      `json:"success"`
	Error      ErrorBody `json:"error"`
	Timestamp  string    `json:"timestamp"`
	RetryAfter int       `json:"retry_after,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

func Page(c *gin.Context, list interface{}, p Pagination) {
	c.JSON(http.StatusOK, PageResponse{
		Success:    true,
		Data:       list,
		Pagination: p,
	})
}

// RequestID 取中间件写入的请求ID，没有时生成一个
func RequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Set(RequestIDKey, id)
	return id
}

// Now 优先使用中间件放入的时钟
func Now(c *gin.Context) time.Time {
	if v, ok := c.Get(ClockKey); ok {
		if clock, ok := v.(Clock); ok && clock != nil {
			return clock()
		}
	}
	return time.Now()
}

func NewErrorResponse(c *gin.Context, code, technical string, details []string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:             code,
			Message:          UserMessage(code),
			TechnicalMessage: technical,
			Details:          details,
			RequestID:        RequestID(c),
		},
		Timestamp: Now(c).Format(time.RFC3339),
	}
}

func Fail(c *gin.Context, status int, code, technical string, details []string) {
	c.JSON(status, NewErrorResponse(c, code, technical, details))
}

// FailRetry 带 retry_after（秒）
func FailRetry(c *gin.Context, status int, code, technical string, retryAfter int) {
	resp := NewErrorResponse(c, code, technical, nil)
	resp.RetryAfter = retryAfter
	c.JSON(status, resp)
}

func BadRequest(c *gin.Context, technical string, details ...string) {
	Fail(c, http.StatusBadRequest, CodeValidation, technical, details)
}

func NotFound(c *gin.Context, technical string) {
	Fail(c, http.StatusNotFound, CodeNotFound, technical, nil)
}

func Unauthorized(c *gin.Context) {
	Fail(c, http.StatusUnauthorized, CodeAuth, "unauthorized", nil)
}

// InternalServerError 只向客户端返回友好提示和请求ID，技术细节写日志
func InternalServerError(c *gin.Context, err error) {
	requestID := RequestID(c)
	logger.Log.Error("Internal server error",
		zap.String("request_id", requestID),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	Fail(c, http.StatusInternalServerError, CodeServer, "", nil)
}
