package middleware

import (
	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID 沿用客户端的 X-Request-ID，没有则生成，并回写到响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(util.RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(util.RequestIDKey, id)
		c.Header(util.RequestIDHeader, id)
		c.Next()
	}
}

// Clock 把注入的时钟放进请求上下文，错误响应的 timestamp 从这里取
func Clock(clock util.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(util.ClockKey, clock)
		c.Next()
	}
}
