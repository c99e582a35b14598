package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleUser, PermissionReadEmail, true},
		{RoleUser, PermissionUpdateEmail, true},
		{RoleUser, PermissionReplayOutbox, false},
		{RoleAdmin, PermissionReplayOutbox, true},
		{"guest", PermissionReadEmail, false},
		{"", PermissionReadStats, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.permission, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.permission))
		})
	}
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission("u1", RoleAdmin, PermissionReplayOutbox))

	err := CheckPermission("u1", RoleUser, PermissionReplayOutbox)
	var denied *PermissionDeniedError
	if assert.True(t, errors.As(err, &denied)) {
		assert.Equal(t, "u1", denied.UserID)
		assert.Equal(t, PermissionReplayOutbox, denied.Permission)
	}
}
