package mq

import "time"

// EmailUpdatedPayload email.updated 事件的 payload
// 由 PostgreSQL store 在 Patch 的同一事务中写入 outbox
type EmailUpdatedPayload struct {
	EventID        string    `json:"event_id"`
	EmailID        string    `json:"email_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	AIDraftChanged bool      `json:"ai_draft_changed"`
	UpdatedAt      time.Time `json:"updated_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}
