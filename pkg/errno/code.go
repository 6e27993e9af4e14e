package errno

import (
	"errors"
	"fmt"
	"net/http"
)

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code       int
	Message    string
	HTTPStatus int
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// Is 按 Code 比较，WithMessage 生成的副本与原值相等
func (e *Errno) Is(target error) bool {
	var t *Errno
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage 返回携带详细信息的副本
func (e *Errno) WithMessage(format string, args ...interface{}) *Errno {
	return &Errno{
		Code:       e.Code,
		Message:    fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
		HTTPStatus: e.HTTPStatus,
	}
}

// StatusCode 返回对应的 HTTP 状态码
func (e *Errno) StatusCode() int {
	if e.HTTPStatus > 0 {
		return e.HTTPStatus
	}
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	return http.StatusInternalServerError
}

var (
	OK = &Errno{Code: 0, Message: "Success", HTTPStatus: http.StatusOK}

	ErrInvalidParams      = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized       = &Errno{Code: 401, Message: "Unauthorized"}
	ErrNotFound           = &Errno{Code: 404, Message: "Not found"}
	ErrInternalServer     = &Errno{Code: 500, Message: "Internal server error"}
	ErrServiceUnavailable = &Errno{Code: 503, Message: "Service unavailable"}

	// 合成请求错误码
	ErrScriptIDRequired  = &Errno{Code: 20001, Message: "Script ID is required", HTTPStatus: http.StatusBadRequest}
	ErrScriptNotFound    = &Errno{Code: 20002, Message: "Script not found", HTTPStatus: http.StatusNotFound}
	ErrAudioNotFound     = &Errno{Code: 20003, Message: "Audio not found. Please generate voice first.", HTTPStatus: http.StatusNotFound}
	ErrThumbnailNotFound = &Errno{Code: 20004, Message: "Thumbnail not found", HTTPStatus: http.StatusNotFound}
	ErrJobNotFound       = &Errno{Code: 20005, Message: "Video job not found", HTTPStatus: http.StatusNotFound}

	// 产物下载错误码
	ErrInvalidArtifactType = &Errno{Code: 20010, Message: "Invalid file type", HTTPStatus: http.StatusBadRequest}
	ErrArtifactNotFound    = &Errno{Code: 20011, Message: "File not found", HTTPStatus: http.StatusNotFound}

	// 归档
	ErrArchiveDisabled = &Errno{Code: 20020, Message: "Job archive is not enabled", HTTPStatus: http.StatusServiceUnavailable}
)
