package service

import (
	"errors"
	"fmt"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrUnknownMetric   = errors.New("unknown metric")
)

// ValidationError 描述单个字段的校验失败。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AsValidationError 从错误链中提取 ValidationError。
func AsValidationError(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
