package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"emailai/internal/analytics"
	"emailai/internal/model"
	"emailai/internal/repository"
)

// StatsCache 统计缓存，nil 表示不缓存
type StatsCache interface {
	Get(ctx context.Context, actor string) (model.EmailStats, bool)
	Set(ctx context.Context, actor string, stats model.EmailStats)
}

type StatsHandler struct {
	sessions *repository.Sessions
	cache    StatsCache
}

func NewStatsHandler(sessions *repository.Sessions, cache StatsCache) *StatsHandler {
	return &StatsHandler{sessions: sessions, cache: cache}
}

// GetStats handles GET /stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.cache != nil {
		if stats, hit := h.cache.Get(ctx, userID); hit {
			c.JSON(http.StatusOK, stats)
			return
		}
	}

	emails, err := h.sessions.Emails(ctx, userID, false)
	if err != nil {
		writeError(c, err)
		return
	}

	stats := analytics.Summarize(emails)
	if h.cache != nil {
		h.cache.Set(ctx, userID, stats)
	}
	c.JSON(http.StatusOK, stats)
}
