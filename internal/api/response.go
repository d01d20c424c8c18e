package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
// @Description 统一响应格式,包含状态码、消息和数据
type Response struct {
	Code    int         `json:"code" example:"0"`          // 状态码: 0 表示成功,非 0 表示失败
	Message string      `json:"message" example:"success"` // 响应消息
	Data    interface{} `json:"data"`                      // 响应数据
}

// ErrorResponse 错误响应格式
// @Description 错误响应格式,reason 为账本错误码,details 携带冲突记录、等待时间或金额
type ErrorResponse struct {
	Code    int                    `json:"code" example:"409"`
	Message string                 `json:"message" example:"task is full"`
	Detail  string                 `json:"detail,omitempty" example:"max_workers=3"`
	Reason  string                 `json:"reason,omitempty" example:"task_full"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PaginatedResponse 分页响应
// @Description 分页响应格式,包含数据列表和分页信息
type PaginatedResponse struct {
	Code       int            `json:"code" example:"0"`
	Message    string         `json:"message" example:"success"`
	Data       interface{}    `json:"data"`       // 数据列表
	Pagination PaginationInfo `json:"pagination"` // 分页信息
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int   `json:"page" example:"1"`
	PageSize  int   `json:"page_size" example:"20"`
	Total     int64 `json:"total" example:"100"`
	TotalPage int   `json:"total_page" example:"5"`
}

// NewPaginationInfo 根据总数计算分页信息,与仓储层的默认页大小和上限保持一致
func NewPaginationInfo(page, pageSize int, total int64) PaginationInfo {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	totalPage := int((total + int64(pageSize) - 1) / int64(pageSize))
	return PaginationInfo{Page: page, PageSize: pageSize, Total: total, TotalPage: totalPage}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail string) {
	c.JSON(statusFromCode(code), ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// ErrorWithReason 带账本错误码和详情的错误响应
func ErrorWithReason(c *gin.Context, code int, message, reason string, details map[string]interface{}) {
	c.JSON(statusFromCode(code), ErrorResponse{
		Code:    code,
		Message: message,
		Reason:  reason,
		Details: details,
	})
}

func statusFromCode(code int) int {
	if code >= 400 && code < 600 {
		return code
	}
	return http.StatusInternalServerError
}

// Paginated 分页响应
func Paginated(c *gin.Context, data interface{}, pagination PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:       0,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}
