package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emailai/internal/draft"
	"emailai/internal/model"
	"emailai/internal/repository"
	"emailai/internal/triage"
	"emailai/pkg/logger"
)

// StatsInvalidator 更新成功后丢弃 actor 的统计缓存，nil 表示不处理
// 其他实例的缓存由 email.updated 事件在 worker 中失效
type StatsInvalidator interface {
	Invalidate(ctx context.Context, actor string) error
}

type EmailHandler struct {
	sessions *repository.Sessions
	drafter  draft.Drafter
	stats    StatsInvalidator
	logger   *zap.Logger
}

func NewEmailHandler(sessions *repository.Sessions, drafter draft.Drafter, stats StatsInvalidator, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		sessions: sessions,
		drafter:  drafter,
		stats:    stats,
		logger:   logger,
	}
}

// ListEmails handles GET /emails?search=&sentiment=&urgency=&refresh=
func (h *EmailHandler) ListEmails(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	criteria, err := triage.ParseCriteria(c.Query("search"), c.Query("sentiment"), c.Query("urgency"))
	if err != nil {
		writeError(c, err)
		return
	}
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	emails, err := h.sessions.Emails(c.Request.Context(), userID, refresh)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Warn("Failed to load emails",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		// 加载失败时看板显示空列表和错误提示
		c.JSON(statusFor(err), gin.H{
			"emails": []model.Email{},
			"error":  err.Error(),
		})
		return
	}

	filtered := triage.Filter(emails, criteria)
	c.JSON(http.StatusOK, gin.H{
		"emails":   filtered,
		"total":    len(emails),
		"filtered": criteria.Active(),
	})
}

// GetEmail handles GET /emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	email, err := h.sessions.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// UpdateEmail handles PATCH /emails/:id
// body 只允许 status 和 aiDraft；aiDraft 为 null 时清空草稿
func (h *EmailHandler) UpdateEmail(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	id := c.Param("id")
	email, err := h.sessions.Update(c.Request.Context(), userID, id, fields)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Info("Email update rejected",
			zap.String("user_id", userID),
			zap.String("email_id", id),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	if h.stats != nil {
		if err := h.stats.Invalidate(c.Request.Context(), userID); err != nil {
			// 失败时依赖 TTL 和 worker 的失效
			logger.WithTrace(c.Request.Context(), h.logger).Warn("Failed to invalidate stats cache",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	c.JSON(http.StatusOK, email)
}

// SuggestDraft handles POST /emails/:id/draft
// 只生成草稿，不保存；保存走 PATCH aiDraft
func (h *EmailHandler) SuggestDraft(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	email, err := h.sessions.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	text, source := h.drafter.Draft(c.Request.Context(), email)
	c.JSON(http.StatusOK, gin.H{
		"draft":  text,
		"source": source,
	})
}
