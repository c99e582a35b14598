package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"emailai/internal/model"
	"emailai/pkg/rbac"
)

// gin.Context 中由鉴权中间件写入的键
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// statusFor 把领域错误映射为 HTTP 状态码
// ErrStoreUnavailable 需要先判断：坏行同时匹配 ErrInvalidValue
func statusFor(err error) int {
	var denied *rbac.PermissionDeniedError
	switch {
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.As(err, &denied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrUnsupportedField), errors.Is(err, model.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// getUserID 读取鉴权中间件写入的 user_id，缺失时写 401
func getUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		writeError(c, model.ErrAuthRequired)
		return "", false
	}
	return userID, true
}
