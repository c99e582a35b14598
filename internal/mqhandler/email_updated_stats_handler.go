package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "emailai/contracts/mq"
	"emailai/pkg/logger"
	"emailai/pkg/mq"
	"emailai/pkg/util"
)

const (
	statsHandlerName = "stats_invalidate"
	// DefaultMaxRetries 超过后转入 DLQ
	DefaultMaxRetries = 3
)

type StatsInvalidator interface {
	Invalidate(ctx context.Context, actor string) error
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string)
}

type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError, failedAt string) error
}

// EmailUpdatedStatsHandler 收到 email.updated 后使该用户的统计缓存失效
type EmailUpdatedStatsHandler struct {
	cache        StatsInvalidator
	deduper      Deduper
	retryCounter RetryCounter
	dlq          DLQPublisher
	maxRetries   int64
	logger       *zap.Logger
}

func NewEmailUpdatedStatsHandler(
	cache StatsInvalidator,
	deduper Deduper,
	retryCounter RetryCounter,
	dlq DLQPublisher,
	logger *zap.Logger,
) *EmailUpdatedStatsHandler {
	return &EmailUpdatedStatsHandler{
		cache:        cache,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		maxRetries:   DefaultMaxRetries,
		logger:       logger,
	}
}

// Handle 返回 error 时消息会被 requeue；不可重试或重试耗尽的消息进入 DLQ 并 ack
func (h *EmailUpdatedStatsHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontracts.EmailUpdatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal EmailUpdatedPayload (non-retryable, sending to DLQ)",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return h.toDLQ(ctx, raw, fmt.Errorf("json_unmarshal_error: %w", err))
	}
	if p.UserID == "" || p.EventID == "" {
		log.Error("EmailUpdatedPayload missing user_id or event_id", zap.String("raw_payload", string(raw)))
		return h.toDLQ(ctx, raw, errors.New("invalid_payload: missing user_id or event_id"))
	}

	log = log.With(
		zap.String("event_id", p.EventID),
		zap.String("user_id", p.UserID),
		zap.String("email_id", p.EmailID),
	)

	if !h.deduper.AcquireOnce(ctx, statsHandlerName, p.EventID) {
		return nil
	}

	err := h.cache.Invalidate(ctx, p.UserID)
	if err == nil {
		log.Info("Stats cache invalidated")
		return nil
	}

	retryCount, cerr := h.retryCounter.IncrementAndGet(ctx, util.FormatRetryKey(statsHandlerName, p.EventID))
	if cerr != nil {
		log.Warn("Failed to get retry count, continuing anyway", zap.Error(cerr))
		retryCount = 1
	}

	_, errType := util.IsRetryableError(err)
	log.Warn("Failed to invalidate stats cache",
		zap.String("error_type", errType),
		zap.Int64("retry_count", retryCount),
		zap.Error(err),
	)

	if retryCount >= h.maxRetries {
		return h.toDLQ(ctx, raw, err)
	}

	// 允许重投递的消息再次处理
	h.deduper.Release(ctx, statsHandlerName, p.EventID)
	return err
}

func (h *EmailUpdatedStatsHandler) toDLQ(ctx context.Context, raw []byte, cause error) error {
	if err := h.dlq.PublishToDLQ(ctx, mq.RoutingKeyEmailUpdated, raw, cause.Error(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		// DLQ 也失败时交给 MQ 重投
		logger.WithTrace(ctx, h.logger).Error("Failed to publish to DLQ", zap.Error(err))
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
