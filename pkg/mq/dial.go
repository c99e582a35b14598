package mq

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DialWithRetry 启动时 RabbitMQ 可能尚未就绪，按指数退避重试 connect
// connect 通常是 NewPublisher 或 NewConsumer 的闭包
func DialWithRetry[T any](ctx context.Context, maxElapsed time.Duration, logger *zap.Logger, connect func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	var out T
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		v, err := connect()
		if err != nil {
			logger.Warn("RabbitMQ not ready, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		out = v
		return nil
	}, backoff.WithContext(b, ctx))
	return out, err
}
