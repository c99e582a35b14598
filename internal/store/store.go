package store

import (
	"context"
	"errors"
	"fmt"

	"emailai/internal/model"
	"emailai/pkg/util"
)

// EmailStore 远程邮件存储，所有操作都限定在 owner 范围内
type EmailStore interface {
	// List 返回 owner 的全部邮件，按 receivedAt 倒序
	List(ctx context.Context, ownerID string) ([]model.Email, error)
	// Patch 把 patch 应用到 (id, owner) 对应的行并返回确认后的行
	Patch(ctx context.Context, id, ownerID string, patch model.EmailPatch) (model.Email, error)
}

// Seeder 写入样例数据（CLI 使用）
type Seeder interface {
	Insert(ctx context.Context, ownerID string, emails []model.Email) error
}

// classify 把驱动错误归为 ErrStoreUnavailable，同时保留原始错误链
func classify(op string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}

// errorKind 日志用的错误类别（connection_error / timeout ...）
func errorKind(err error) string {
	_, kind := util.IsRetryableError(err)
	return kind
}

// normalize 映射后的行：空切片代替 nil，并校验枚举
func normalize(e model.Email) (model.Email, error) {
	if e.Contacts == nil {
		e.Contacts = []string{}
	}
	if e.Requests == nil {
		e.Requests = []string{}
	}
	if err := e.Validate(); err != nil {
		return model.Email{}, fmt.Errorf("malformed row %s: %w", e.ID, err)
	}
	return e, nil
}
