package model

import (
	"errors"
	"fmt"
)

// 仓储层错误分类
var (
	ErrAuthRequired     = errors.New("authentication required")
	ErrStoreUnavailable = errors.New("email store unavailable")
	ErrNotFound         = errors.New("email not found")
	ErrUnsupportedField = errors.New("unsupported field")
	ErrInvalidValue     = errors.New("invalid value")
)

func invalidValue(field, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidValue, field, value)
}
