package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"emailai/internal/model"
	"emailai/pkg/metrics"
)

const systemPrompt = "You are a helpful and empathetic customer support assistant. " +
	"Always respond in a friendly, professional, and understanding tone. " +
	"If the customer is upset, show empathy and reassure them."

// NewOpenAIClient 直接调用 OpenAI Chat Completions，不经过回复服务
// baseURL 为空时使用官方地址
func NewOpenAIClient(apiKey, baseURL, chatModel string, timeout time.Duration, fallback *Selector, log *zap.Logger) *AIClient {
	c := newClient(timeout, fallback, log)

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = c.httpClient
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	client := openai.NewClientWithConfig(cfg)
	c.baseURL = cfg.BaseURL
	c.generate = func(ctx context.Context, email model.Email) (string, error) {
		return chatReply(ctx, client, chatModel, email)
	}
	return c
}

func chatReply(ctx context.Context, client *openai.Client, chatModel string, email model.Email) (string, error) {
	const endpoint = "/chat/completions"
	start := time.Now()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(email)},
		},
	})
	if err != nil {
		status := "error"
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			status = fmt.Sprintf("%d", apiErr.HTTPStatusCode)
		}
		metrics.RecordReplyServiceLatency(endpoint, status, time.Since(start))
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	metrics.RecordReplyServiceLatency(endpoint, "success", time.Since(start))

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("openai returned empty reply")
	}
	return resp.Choices[0].Message.Content, nil
}
