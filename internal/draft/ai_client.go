package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"emailai/internal/model"
	"emailai/pkg/circuitbreaker"
	"emailai/pkg/logger"
	"emailai/pkg/metrics"
	"emailai/pkg/otel"
	"emailai/pkg/trace"
)

const replyEndpoint = "/reply"

// AIClient 调用回复生成后端，失败或熔断时退回模板草稿
type AIClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	fallback   *Selector
	logger     *zap.Logger
	// generate 实际的生成调用：回复服务 HTTP 或 OpenAI
	generate func(ctx context.Context, email model.Email) (string, error)
}

type replyRequest struct {
	Body string `json:"body"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

// NewAIClient 使用回复服务（POST {baseURL}/reply）
func NewAIClient(baseURL string, timeout time.Duration, fallback *Selector, log *zap.Logger) *AIClient {
	c := newClient(timeout, fallback, log)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	c.generate = c.callReply
	return c
}

func newClient(timeout time.Duration, fallback *Selector, log *zap.Logger) *AIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second // LLM 生成需要较长时间
	}
	c := &AIClient{
		httpClient: &http.Client{Timeout: timeout},
		fallback:   fallback,
		logger:     log,
	}
	c.cb = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("Reply service circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Draft 返回 AI 生成的回复；任何失败都返回模板草稿，不向调用方暴露错误
func (c *AIClient) Draft(ctx context.Context, email model.Email) (string, string) {
	ctx, span := otel.StartSpan(ctx, "draft.generate")
	defer span.End()
	span.SetAttributes(attribute.String("email.id", email.ID))

	var reply string
	err := c.cb.Execute(func() error {
		var callErr error
		reply, callErr = c.generate(ctx, email)
		return callErr
	})
	if err == nil {
		metrics.IncrementDraftGenerated(SourceAI)
		span.SetAttributes(attribute.String("draft.source", SourceAI))
		return reply, SourceAI
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "fallback to template")

	log := logger.WithTrace(ctx, c.logger)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		log.Debug("Reply service circuit open, using template", zap.String("email_id", email.ID))
	} else {
		log.Warn("Reply service failed, using template",
			zap.String("email_id", email.ID),
			zap.Error(err),
		)
	}
	metrics.IncrementDraftGenerated(SourceTemplate)
	return c.fallback.Suggest(email), SourceTemplate
}

func (c *AIClient) callReply(ctx context.Context, email model.Email) (string, error) {
	start := time.Now()

	b, err := json.Marshal(replyRequest{Body: buildPrompt(email)})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+replyEndpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	// 传播 trace_id
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordReplyServiceLatency(replyEndpoint, "error", time.Since(start))
		return "", fmt.Errorf("failed to call reply service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordReplyServiceLatency(replyEndpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
		return "", fmt.Errorf("reply service returned error: %d", resp.StatusCode)
	}

	var out replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RecordReplyServiceLatency(replyEndpoint, "decode_error", time.Since(start))
		return "", fmt.Errorf("failed to decode reply: %w", err)
	}
	metrics.RecordReplyServiceLatency(replyEndpoint, "success", time.Since(start))

	if strings.TrimSpace(out.Reply) == "" {
		return "", errors.New("reply service returned empty reply")
	}
	return out.Reply, nil
}

// buildPrompt 把邮件整理成回复服务需要的正文
func buildPrompt(email model.Email) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s <%s>\n", email.Sender.Name, email.Sender.Email)
	fmt.Fprintf(&sb, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&sb, "Sentiment: %s, Urgency: %s, Category: %s\n\n", email.Sentiment, email.Urgency, email.Category)
	sb.WriteString(email.Content)
	return sb.String()
}
