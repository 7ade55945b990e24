// Package response 提供统一的 API 响应格式
// 业务码 0 表示成功，失败时 HTTP 状态与业务码一起返回
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response API 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

const okMessage = "success"

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: okMessage, Data: data})
}

// Created 预订提交等创建类接口返回 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Message: okMessage, Data: data})
}

func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

// ErrorWithStatus 错误响应，code 为业务错误码
func ErrorWithStatus(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{Code: code, Message: message})
}

// 以下快捷方法的业务码与 HTTP 状态相同，message 为空时使用状态文本

func BadRequest(c *gin.Context, message string)      { statusError(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string)    { statusError(c, http.StatusUnauthorized, message) }
func Forbidden(c *gin.Context, message string)       { statusError(c, http.StatusForbidden, message) }
func TooManyRequests(c *gin.Context, message string) { statusError(c, http.StatusTooManyRequests, message) }
func InternalError(c *gin.Context, message string)   { statusError(c, http.StatusInternalServerError, message) }

func statusError(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	ErrorWithStatus(c, status, status, message)
}
