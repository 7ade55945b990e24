// Package handler 提供 API Handler 的通用辅助函数
// 统一错误映射、认证检查、参数解析等操作
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
	"github.com/dumeirei/villa-booking-backend/internal/common/utils"
	"github.com/dumeirei/villa-booking-backend/internal/middleware"
)

// ============================================================================
// 统一错误处理
// ============================================================================

// notFoundCodes 校验类错误中表示资源不存在的错误码
var notFoundCodes = map[int]struct{}{
	errors.ErrNotFound.Code:        {},
	errors.ErrUserNotFound.Code:    {},
	errors.ErrGuestNotFound.Code:   {},
	errors.ErrVillaNotFound.Code:   {},
	errors.ErrBookingNotFound.Code: {},
}

// HTTPStatus 按错误类别选择 HTTP 状态码
func HTTPStatus(err error) int {
	appErr := errors.GetAppError(err)
	if !errors.IsAppError(err) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case errors.KindValidation:
		if _, ok := notFoundCodes[appErr.Code]; ok {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case errors.KindPolicy:
		return http.StatusUnprocessableEntity
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindDatesUnavailable:
		return http.StatusConflict
	case errors.KindStoreFailure:
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case errors.ErrUnauthorized.Code, errors.ErrTokenExpired.Code, errors.ErrTokenInvalid.Code:
		return http.StatusUnauthorized
	case errors.ErrRateLimitExceed.Code:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// HandleError 处理错误并发送响应
// err 为 nil 时返回 false；否则已写入响应，调用方应直接 return
//
// 使用示例:
//
//	booking, err := h.manager.SubmitBooking(ctx, actor, req)
//	if handler.HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	status := HTTPStatus(err)
	if !errors.IsAppError(err) {
		response.InternalError(c, "服务器内部错误")
		return true
	}

	appErr := errors.GetAppError(err)
	message := appErr.Message
	if appErr.Kind == errors.KindStoreFailure {
		// 存储错误不向客户端暴露细节
		message = "服务暂不可用，请稍后重试"
	}
	_ = c.Error(err)
	response.ErrorWithStatus(c, status, appErr.Code, message)
	return true
}

// MustSucceed 有错误返回错误响应，否则返回成功响应
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedPage 分页响应版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, page, pageSize int) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, page, pageSize)
}

// ============================================================================
// 用户认证检查
// ============================================================================

// RequireUserID 获取当前用户 ID，未登录时写入 401
//
// 使用示例:
//
//	userID, ok := handler.RequireUserID(c)
//	if !ok {
//	    return
//	}
func RequireUserID(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return userID, true
}

// ============================================================================
// 参数解析
// ============================================================================

// ParseID 解析路径参数 "id" 为 int64
// 失败时已写入 400，调用方应直接 return
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数为 int64
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// RequireUserAndParseID 组合：检查登录 + 解析 ID 参数
func RequireUserAndParseID(c *gin.Context, resourceName string) (userID, resourceID int64, ok bool) {
	userID, ok = RequireUserID(c)
	if !ok {
		return 0, 0, false
	}
	resourceID, ok = ParseID(c, resourceName)
	if !ok {
		return 0, 0, false
	}
	return userID, resourceID, true
}

// RequireQueryDateRange 读取必填的 start_date、end_date 查询参数
// 只检查是否提供，格式与先后由业务层校验
func RequireQueryDateRange(c *gin.Context) (start, end string, ok bool) {
	start = c.Query("start_date")
	end = c.Query("end_date")
	if start == "" || end == "" {
		response.BadRequest(c, "请指定开始和结束日期")
		return "", "", false
	}
	return start, end, true
}

// QueryInt 读取整数查询参数，缺省时返回 def
// 格式错误时已写入 400
func QueryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(c, "无效的参数 "+name)
		return 0, false
	}
	return v, true
}

// ============================================================================
// 分页处理
// ============================================================================

// BindPagination 从查询参数绑定并规范化分页参数
// 默认 page=1, pageSize=10, 最大 pageSize=100
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	p.Normalize()
	return p
}
