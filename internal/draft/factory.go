package draft

import (
	"fmt"

	"go.uber.org/zap"

	"emailai/internal/config"
)

// New 根据配置选择草稿来源，AI 后端都以模板为兜底
func New(cfg config.DraftConfig, log *zap.Logger) (Drafter, error) {
	selector := NewSelector()
	switch cfg.Provider {
	case config.ProviderTemplate, "":
		return selector, nil
	case config.ProviderReply:
		return NewAIClient(cfg.BaseURL, cfg.Timeout, selector, log), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, selector, log), nil
	default:
		return nil, fmt.Errorf("unknown draft provider %q", cfg.Provider)
	}
}
