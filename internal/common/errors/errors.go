// Package errors 业务错误码与错误类别
// 类别决定调用方的处理方式，错误码用于客户端区分具体原因
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown          Kind = iota
	KindValidation            // 输入格式错误或资源不存在
	KindPolicy                // 违反房源规则或状态机
	KindForbidden             // 身份或归属不符
	KindDatesUnavailable      // 日期已被占用
	KindStoreFailure          // 存储不可用
)

var kindNames = [...]string{
	KindUnknown:          "unknown",
	KindValidation:       "validation",
	KindPolicy:           "policy",
	KindForbidden:        "forbidden",
	KindDatesUnavailable: "dates_unavailable",
	KindStoreFailure:     "store_failure",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// AppError 带错误码的业务错误
// 错误码相同即视为同一错误，WithMessage 与 WithError 的派生值仍满足 errors.Is
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// WithMessage 替换面向用户的消息
func (e *AppError) WithMessage(message string) *AppError {
	clone := *e
	clone.Message = message
	return &clone
}

// WithError 附上底层原因，不改变消息
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New 未分类的错误，HTTP 层按错误码处理
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func define(kind Kind, code int, message string) *AppError {
	return &AppError{Code: code, Message: message, Kind: kind}
}

// 通用 1xxx
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = define(KindValidation, 1001, "参数错误")
	ErrNotFound        = define(KindValidation, 1002, "资源不存在")
	ErrDatabaseError   = define(KindStoreFailure, 1004, "数据库错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
)

// 认证 2xxx
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrPermissionDenied = define(KindForbidden, 2004, "权限不足")
)

// 用户 3xxx
var (
	ErrUserNotFound  = define(KindValidation, 3000, "用户不存在")
	ErrGuestNotFound = define(KindValidation, 3008, "房客不存在")
)

// 房源与日历 4xxx
var (
	ErrVillaNotFound      = define(KindValidation, 4000, "房源不存在")
	ErrVillaInvalid       = define(KindValidation, 4001, "房源信息不完整")
	ErrVillaStatusError   = define(KindPolicy, 4002, "房源状态不允许此操作")
	ErrCalendarDateFormat = define(KindValidation, 4003, "日历日期格式错误")
)

// 预订 8xxx
var (
	ErrBookingNotFound     = define(KindValidation, 8000, "预订不存在")
	ErrInvalidRange        = define(KindValidation, 8001, "入住日期范围无效")
	ErrInvalidGuests       = define(KindValidation, 8002, "入住人数无效")
	ErrBelowMinimumStay    = define(KindPolicy, 8003, "未达到最少入住晚数")
	ErrOverOccupancy       = define(KindPolicy, 8004, "入住人数超过房源上限")
	ErrNotPublished        = define(KindPolicy, 8005, "房源未上架")
	ErrIdentityMismatch    = define(KindForbidden, 8006, "不能代他人预订")
	ErrDatesUnavailable    = define(KindDatesUnavailable, 8007, "所选日期不可预订")
	ErrInvalidTransition   = define(KindPolicy, 8008, "预订状态不允许此操作")
	ErrCancellationRefused = define(KindPolicy, 8009, "取消政策不允许取消")
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 非业务错误包装为 ErrUnknown
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// KindOf 非业务错误一律视为存储故障
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStoreFailure
}

func Is(err, target error) bool { return stderrors.Is(err, target) }
