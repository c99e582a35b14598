package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"emailai/internal/model"
	"emailai/internal/store"
	"emailai/pkg/logger"
	"emailai/pkg/metrics"
)

// State 仓储当前快照的元信息
type State struct {
	Owner    string
	Loaded   bool
	Count    int
	LoadedAt time.Time
	// Err 最近一次 Load 的错误；Loaded=false 且 Err=nil 表示从未加载
	Err error
}

// EmailRepository 单个 actor 的邮件缓存
// 只有远程确认后的更新才会写入缓存，同一 id 的 Update 串行执行
type EmailRepository struct {
	store  store.EmailStore
	logger *zap.Logger
	locks  *keyedMutex

	mu       sync.RWMutex
	owner    string
	ids      []string // receivedAt 倒序
	byID     map[string]model.Email
	loaded   bool
	loadedAt time.Time
	lastErr  error
	now      func() time.Time

	// Load 进行期间确认的更新，List 返回后重放到新快照上
	loading int
	gen     uint64
	merges  []mergeRecord
}

type mergeRecord struct {
	gen   uint64
	actor string
	id    string
	patch model.EmailPatch
}

func NewEmailRepository(s store.EmailStore, logger *zap.Logger) *EmailRepository {
	return &EmailRepository{
		store:  s,
		logger: logger,
		locks:  newKeyedMutex(),
		byID:   make(map[string]model.Email),
		now:    time.Now,
	}
}

// Load 拉取 actor 的全部邮件并整体替换缓存
// 失败时缓存清空并记录错误，调用方可以区分"出错"和"零封邮件"
func (r *EmailRepository) Load(ctx context.Context, actor string) ([]model.Email, error) {
	log := logger.WithTrace(ctx, r.logger).With(zap.String("user_id", actor))

	if actor == "" {
		r.fail(actor, model.ErrAuthRequired)
		metrics.IncrementEmailLoad("auth_required")
		return nil, model.ErrAuthRequired
	}

	r.mu.Lock()
	startGen := r.gen
	r.loading++
	r.mu.Unlock()

	emails, err := r.store.List(ctx, actor)
	if err != nil {
		if !errors.Is(err, model.ErrStoreUnavailable) {
			err = errors.Join(model.ErrStoreUnavailable, err)
		}
		r.mu.Lock()
		r.finishLoad()
		r.mu.Unlock()
		r.fail(actor, err)
		metrics.IncrementEmailLoad("error")
		log.Error("Failed to load emails", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(emails))
	byID := make(map[string]model.Email, len(emails))
	for _, e := range emails {
		if _, dup := byID[e.ID]; !dup {
			ids = append(ids, e.ID)
		}
		byID[e.ID] = e.Clone()
	}

	r.mu.Lock()
	// List 之后才确认的更新不在快照里，按确认顺序补上
	for _, m := range r.merges {
		if m.gen <= startGen || m.actor != actor {
			continue
		}
		if e, ok := byID[m.id]; ok {
			byID[m.id] = m.patch.Apply(e)
		}
	}
	r.finishLoad()
	r.owner = actor
	r.ids = ids
	r.byID = byID
	r.loaded = true
	r.loadedAt = r.now()
	r.lastErr = nil
	r.mu.Unlock()

	metrics.IncrementEmailLoad("ok")
	log.Info("Emails loaded", zap.Int("count", len(ids)))
	return r.Emails(), nil
}

// finishLoad 调用方持有 r.mu
func (r *EmailRepository) finishLoad() {
	r.loading--
	if r.loading == 0 {
		r.merges = nil
	}
}

func (r *EmailRepository) fail(actor string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = actor
	r.ids = nil
	r.byID = make(map[string]model.Email)
	r.loaded = false
	r.lastErr = err
}

// Update 校验字段后远程更新 (id, actor)，成功后把接受的字段合并进缓存
// 不支持的字段返回 ErrUnsupportedField，非法值或空更新返回 ErrInvalidValue，均不触发远程调用
func (r *EmailRepository) Update(ctx context.Context, actor, id string, fields map[string]any) (model.Email, error) {
	log := logger.WithTrace(ctx, r.logger).With(
		zap.String("user_id", actor),
		zap.String("email_id", id),
	)

	if actor == "" {
		metrics.IncrementEmailUpdate("auth_required")
		return model.Email{}, model.ErrAuthRequired
	}

	patch, err := model.ParsePatch(fields)
	if err != nil {
		metrics.IncrementEmailUpdate("rejected")
		log.Warn("Rejected email update", zap.Error(err))
		return model.Email{}, err
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	confirmed, err := r.store.Patch(ctx, id, actor, patch)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			metrics.IncrementEmailUpdate("not_found")
		} else {
			metrics.IncrementEmailUpdate("error")
		}
		log.Error("Failed to update email", zap.Error(err))
		return model.Email{}, err
	}

	result := confirmed.Clone()

	r.mu.Lock()
	r.gen++
	if r.loading > 0 {
		r.merges = append(r.merges, mergeRecord{gen: r.gen, actor: actor, id: id, patch: patch})
	}
	if r.owner == actor {
		if cached, ok := r.byID[id]; ok {
			merged := patch.Apply(cached)
			r.byID[id] = merged
			result = merged.Clone()
		}
	}
	r.mu.Unlock()

	metrics.IncrementEmailUpdate("ok")
	log.Info("Email updated")
	return result, nil
}

// Emails 返回缓存快照（深拷贝，保持 receivedAt 倒序）
func (r *EmailRepository) Emails() []model.Email {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Email, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

// Get 返回缓存中的单封邮件
func (r *EmailRepository) Get(id string) (model.Email, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return model.Email{}, false
	}
	return e.Clone(), true
}

// State 返回加载状态
func (r *EmailRepository) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return State{
		Owner:    r.owner,
		Loaded:   r.loaded,
		Count:    len(r.ids),
		LoadedAt: r.loadedAt,
		Err:      r.lastErr,
	}
}
