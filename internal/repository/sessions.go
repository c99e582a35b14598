package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"emailai/internal/model"
	"emailai/internal/store"
)

// Sessions 多用户服务端为每个 actor 维护一个 EmailRepository
type Sessions struct {
	store  store.EmailStore
	logger *zap.Logger

	mu    sync.Mutex
	repos map[string]*session
	now   func() time.Time
}

type session struct {
	repo     *EmailRepository
	lastUsed time.Time
}

func NewSessions(s store.EmailStore, logger *zap.Logger) *Sessions {
	return &Sessions{
		store:  s,
		logger: logger,
		repos:  make(map[string]*session),
		now:    time.Now,
	}
}

// For 返回 actor 的仓储，不存在时创建（尚未加载）
func (s *Sessions) For(actor string) (*EmailRepository, error) {
	if actor == "" {
		return nil, model.ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.repos[actor]
	if !ok {
		sess = &session{repo: NewEmailRepository(s.store, s.logger)}
		s.repos[actor] = sess
	}
	sess.lastUsed = s.now()
	return sess.repo, nil
}

// Emails 返回 actor 的邮件；未加载、上次失败或 refresh 时重新 Load
func (s *Sessions) Emails(ctx context.Context, actor string, refresh bool) ([]model.Email, error) {
	repo, err := s.For(actor)
	if err != nil {
		return nil, err
	}
	if !refresh && repo.State().Loaded {
		return repo.Emails(), nil
	}
	return repo.Load(ctx, actor)
}

// Get 返回 actor 的单封邮件，必要时先加载
func (s *Sessions) Get(ctx context.Context, actor, id string) (model.Email, error) {
	if _, err := s.Emails(ctx, actor, false); err != nil {
		return model.Email{}, err
	}
	repo, _ := s.For(actor)
	e, ok := repo.Get(id)
	if !ok {
		return model.Email{}, model.ErrNotFound
	}
	return e, nil
}

// Update 委托给 actor 的仓储
func (s *Sessions) Update(ctx context.Context, actor, id string, fields map[string]any) (model.Email, error) {
	repo, err := s.For(actor)
	if err != nil {
		return model.Email{}, err
	}
	return repo.Update(ctx, actor, id, fields)
}

// EvictIdle 丢弃超过 maxIdle 未访问的 actor 缓存，返回丢弃数量；下次访问重新 Load
func (s *Sessions) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for actor, sess := range s.repos {
		if sess.lastUsed.Before(cutoff) {
			delete(s.repos, actor)
			n++
		}
	}
	return n
}

// StartEviction 每 interval 清理一次空闲缓存，阻塞直到 ctx 取消
func (s *Sessions) StartEviction(ctx context.Context, interval, maxIdle time.Duration) {
	s.logger.Info("Starting session eviction",
		zap.Duration("interval", interval),
		zap.Duration("max_idle", maxIdle),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.logger.Info("Evicted idle email caches",
					zap.Int("count", n),
					zap.Int("remaining", s.Len()),
				)
			}
		}
	}
}

// Len 当前缓存的 actor 数
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.repos)
}
