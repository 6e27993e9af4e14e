package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"video-assembly-service/pkg/errno"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: errno.OK.Code, Message: errno.OK.Message, Data: data})
}

// Failed 返回失败响应；非 Errno 错误统一按 500 处理
func Failed(c *gin.Context, err error) {
	var e *errno.Errno
	if !errors.As(err, &e) {
		e = &errno.Errno{Code: errno.ErrInternalServer.Code, Message: err.Error()}
	}
	c.AbortWithStatusJSON(e.StatusCode(), Response{Code: e.Code, Message: e.Message})
}

// Raw 不带信封直接输出数据，旧接口使用
func Raw(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// FailedDetail 旧接口的错误格式 {"detail": "..."}
func FailedDetail(c *gin.Context, err error) {
	var e *errno.Errno
	if !errors.As(err, &e) {
		e = &errno.Errno{Code: errno.ErrInternalServer.Code, Message: err.Error()}
	}
	c.AbortWithStatusJSON(e.StatusCode(), gin.H{"detail": e.Message})
}
