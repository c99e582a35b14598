package rbac

import "slices"

// 权限常量
const (
	PermissionReadEmail   = "email:read"
	PermissionUpdateEmail = "email:update"
	PermissionDraftEmail  = "email:draft"
	PermissionReadStats   = "stats:read"

	// 运维操作
	PermissionReplayOutbox = "outbox:replay"
)

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionReadEmail,
		PermissionUpdateEmail,
		PermissionDraftEmail,
		PermissionReadStats,
	},
	RoleAdmin: {
		PermissionReadEmail,
		PermissionUpdateEmail,
		PermissionDraftEmail,
		PermissionReadStats,
		PermissionReplayOutbox,
	},
}

// HasPermission 检查角色是否有指定权限，未知角色没有任何权限
func HasPermission(role, permission string) bool {
	return slices.Contains(rolePermissions[role], permission)
}

// CheckPermission 检查权限（返回错误而不是布尔值，便于处理）
func CheckPermission(userID, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     string
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
