// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeProjectNotFound      ErrorCode = "3001"
	CodeChapterNotFound      ErrorCode = "3002"
	CodeVersionNotFound      ErrorCode = "3003"
	CodePartNotFound         ErrorCode = "3004"
	CodeChapterOutlineAbsent ErrorCode = "3005"
	CodeJobNotFound          ErrorCode = "3006"

	// 大纲规划错误 (4xxx)
	CodeInvalidRange         ErrorCode = "4101"
	CodeSerialOrderViolation ErrorCode = "4102"
	CodeMinimumParts         ErrorCode = "4103"

	// 生成错误
	CodeGenerationFailed ErrorCode = "4001"
	CodeLLMCallFailed    ErrorCode = "4005"
	CodeEmbeddingFailed  ErrorCode = "4006"

	// 外部服务错误 (5xxx)
	CodeDatabaseError      ErrorCode = "5001"
	CodeCacheError         ErrorCode = "5002"
	CodeVectorDBError      ErrorCode = "5003"
	CodeCascadeTransaction ErrorCode = "5006"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Detail     string         `json:"detail,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// WithMeta 附加结构化信息（如级联删除预览）
func (e *AppError) WithMeta(key string, value any) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 创建带格式化消息的应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeInvalidRange, CodeMinimumParts:
		return http.StatusBadRequest
	case CodeNotFound, CodeProjectNotFound, CodeChapterNotFound, CodeVersionNotFound,
		CodePartNotFound, CodeChapterOutlineAbsent, CodeJobNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeSerialOrderViolation:
		return http.StatusConflict
	case CodeGenerationFailed, CodeLLMCallFailed, CodeEmbeddingFailed:
		return http.StatusBadGateway
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound     = New(CodeNotFound, "resource not found")
	ErrConflict     = New(CodeConflict, "resource conflict")
	ErrInternal     = New(CodeInternalError, "internal server error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 判断错误链中是否包含指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// InvalidRange 章节/分卷范围非法
func InvalidRange(format string, args ...any) *AppError {
	return Newf(CodeInvalidRange, format, args...)
}

// SerialOrderViolation 重新生成非最新单元但未确认级联删除
func SerialOrderViolation(format string, args ...any) *AppError {
	return Newf(CodeSerialOrderViolation, format, args...)
}

// NotFound 资源不存在
func NotFound(code ErrorCode, format string, args ...any) *AppError {
	return Newf(code, format, args...)
}

// GenerationFailed 生成后端调用失败
func GenerationFailed(err error, message string) *AppError {
	return Wrap(err, CodeGenerationFailed, message)
}

// CascadeFailed 级联删除未能原子完成
func CascadeFailed(err error) *AppError {
	return Wrap(err, CodeCascadeTransaction, "cascade deletion rolled back")
}
