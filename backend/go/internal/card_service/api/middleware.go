package api

import (
	"time"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger 创建一个 Gin 中间件，为每个请求生成 trace_id 并在请求
// 结束后输出一条结构化访问日志。
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := uuid.NewString()
		c.Set("traceID", traceID)

		start := time.Now()
		c.Next()

		logger.New(serviceName, traceID).
			WithRequest(models.RequestInfo{
				Method:     c.Request.Method,
				Path:       c.Request.URL.Path,
				RemoteAddr: c.ClientIP(),
				UserAgent:  c.Request.UserAgent(),
			}).
			WithPayload(map[string]interface{}{
				"status":     c.Writer.Status(),
				"latency_ms": time.Since(start).Milliseconds(),
			}).
			Info("请求完成")
	}
}
