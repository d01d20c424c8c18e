package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/logging"
	"github.com/mautops/bounty-gin/internal/utils"
	"gorm.io/gorm"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件,处理 handler 通过 c.Error 挂载且尚未写出的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		HandleError(c, c.Errors.Last().Err)
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusForKind 账本错误分类对应的 HTTP 状态码
func StatusForKind(kind ledger.Kind) int {
	switch kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindAuthorization:
		return http.StatusForbidden
	case ledger.KindStateConflict, ledger.KindTemporal:
		return http.StatusConflict
	case ledger.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ledger.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 把服务层错误写成统一错误响应
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	if e, ok := ledger.AsError(err); ok {
		ErrorWithReason(c, StatusForKind(e.Kind), e.Message, e.Code, e.Details)
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
		return
	}

	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		ErrorWithReason(c, http.StatusBadRequest, validationErr.Message, validationErr.Code, nil)
		return
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		Error(c, http.StatusNotFound, "resource not found", "")
		return
	}

	logging.GetLogger().WithError(err).WithField("request_id", c.GetString(ContextRequestID)).Error("unhandled error")
	Error(c, http.StatusInternalServerError, "internal server error", "")
}

// BindError 请求体或查询参数绑定失败
func BindError(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, "invalid request", err.Error())
}
