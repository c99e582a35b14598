package model

import "time"

// User 登录用户，ID 即仓储层的 actor
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
