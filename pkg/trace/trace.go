package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// HeaderName trace ID 的 HTTP header 名称
const HeaderName = "X-Trace-ID"

// RequestIDHeader 部分网关只透传 X-Request-ID
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// GenerateTraceID 生成一个新的 trace ID（32 位十六进制）
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FromContext 从 context 中获取 trace_id
func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 将 trace_id 添加到 context 中
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeaders 依次读取 X-Trace-ID、X-Request-ID，都没有时生成新的
func FromHeaders(get func(string) string) string {
	if v := get(HeaderName); v != "" {
		return v
	}
	if v := get(RequestIDHeader); v != "" {
		return v
	}
	return GenerateTraceID()
}
