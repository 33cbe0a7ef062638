package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// 错误代码常量
const (
	ErrCodeInternalServerError = http.StatusInternalServerError // 服务器内部错误
	ErrCodeRuleNotFound        = http.StatusNotFound            // 规则不存在
)

// APIError 自定义接口错误类型
type APIError struct {
	Code    int    // HTTP 状态码
	Message string // 错误消息
	Err     error  // 原始错误
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewRuleNotFoundError 创建规则不存在错误
func NewRuleNotFoundError(ruleID string) *APIError {
	return &APIError{
		Code:    ErrCodeRuleNotFound,
		Message: fmt.Sprintf("rule %s not found", ruleID),
	}
}

// HandleError 统一错误处理函数
func HandleError(c echo.Context, err error) error {
	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	}).Warn("API error")

	if apiErr, ok := err.(*APIError); ok {
		return c.JSON(apiErr.Code, Response{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		})
	}

	return c.JSON(ErrCodeInternalServerError, Response{
		Code:    ErrCodeInternalServerError,
		Message: "internal server error",
	})
}
