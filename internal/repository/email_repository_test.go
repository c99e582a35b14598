package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emailai/internal/model"
)

// fakeStore 内存实现，记录调用次数并检测同一 id 的并发 Patch
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string][]model.Email
	listErr error
	patchFn func(id string) error
	// afterList 在快照取出后调用，用来卡住 List
	afterList func()

	listCalls  atomic.Int32
	patchCalls atomic.Int32

	inflight    sync.Map // id -> *atomic.Int32
	overlapping atomic.Bool
	patchDelay  time.Duration
}

func newFakeStore(owner string, emails ...model.Email) *fakeStore {
	return &fakeStore{rows: map[string][]model.Email{owner: emails}}
}

func (f *fakeStore) List(_ context.Context, ownerID string) ([]model.Email, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	out := make([]model.Email, 0, len(f.rows[ownerID]))
	for _, e := range f.rows[ownerID] {
		out = append(out, e.Clone())
	}
	f.mu.Unlock()
	if f.afterList != nil {
		f.afterList()
	}
	return out, nil
}

func (f *fakeStore) Patch(_ context.Context, id, ownerID string, patch model.EmailPatch) (model.Email, error) {
	f.patchCalls.Add(1)

	counter, _ := f.inflight.LoadOrStore(id, &atomic.Int32{})
	n := counter.(*atomic.Int32)
	if n.Add(1) > 1 {
		f.overlapping.Store(true)
	}
	defer n.Add(-1)
	time.Sleep(f.patchDelay)

	if f.patchFn != nil {
		if err := f.patchFn(id); err != nil {
			return model.Email{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.rows[ownerID] {
		if e.ID == id {
			f.rows[ownerID][i] = patch.Apply(e)
			return f.rows[ownerID][i].Clone(), nil
		}
	}
	return model.Email{}, model.ErrNotFound
}

func mkEmail(id string, status model.Status) model.Email {
	return model.Email{
		ID:         id,
		Subject:    "Subject " + id,
		Sender:     model.Sender{Name: "Sender " + id, Email: id + "@example.com"},
		ReceivedAt: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		Sentiment:  model.SentimentNeutral,
		Urgency:    model.UrgencyLow,
		Category:   model.CategoryGeneral,
		Status:     status,
		Contacts:   []string{"c"},
		Requests:   []string{},
	}
}

func ids(emails []model.Email) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, e.ID)
	}
	return out
}

func TestLoad_PreservesStoreOrder(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("3", model.StatusUnread), mkEmail("1", model.StatusRead), mkEmail("2", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())

	emails, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, ids(emails))

	st := repo.State()
	assert.True(t, st.Loaded)
	assert.Equal(t, "alice", st.Owner)
	assert.Equal(t, 3, st.Count)
	assert.NoError(t, st.Err)
}

func TestLoad_TwiceGivesIdenticalSnapshot(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread), mkEmail("2", model.StatusRead))
	repo := NewEmailRepository(fs, zap.NewNop())

	first, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	second, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoad_EmptyActor(t *testing.T) {
	fs := newFakeStore("alice")
	repo := NewEmailRepository(fs, zap.NewNop())

	_, err := repo.Load(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrAuthRequired)
	assert.Equal(t, int32(0), fs.listCalls.Load())
	assert.ErrorIs(t, repo.State().Err, model.ErrAuthRequired)
}

func TestLoad_FailureClearsCache(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())

	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, repo.Emails(), 1)

	fs.listErr = errors.New("connection refused")
	_, err = repo.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	st := repo.State()
	assert.False(t, st.Loaded)
	assert.Equal(t, 0, st.Count)
	assert.Error(t, st.Err)
	assert.Empty(t, repo.Emails())
	assert.NotNil(t, repo.Emails())
}

func TestLoad_ZeroEmailsIsNotAnError(t *testing.T) {
	repo := NewEmailRepository(newFakeStore("alice"), zap.NewNop())

	emails, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.True(t, repo.State().Loaded)
}

func TestUpdate_MergesAfterConfirmation(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread), mkEmail("2", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())
	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)

	updated, err := repo.Update(context.Background(), "alice", "2", map[string]any{"status": "replied", "aiDraft": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReplied, updated.Status)
	require.NotNil(t, updated.AIDraft)
	assert.Equal(t, "Hi", *updated.AIDraft)

	cached, ok := repo.Get("2")
	require.True(t, ok)
	assert.Equal(t, updated, cached)
	// 顺序不变，其他邮件不受影响
	assert.Equal(t, []string{"1", "2"}, ids(repo.Emails()))
	other, _ := repo.Get("1")
	assert.Equal(t, model.StatusUnread, other.Status)
}

func TestUpdate_NullDraftClears(t *testing.T) {
	e := mkEmail("1", model.StatusRead)
	d := "old draft"
	e.AIDraft = &d
	fs := newFakeStore("alice", e)
	repo := NewEmailRepository(fs, zap.NewNop())
	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)

	updated, err := repo.Update(context.Background(), "alice", "1", map[string]any{"aiDraft": nil})
	require.NoError(t, err)
	assert.Nil(t, updated.AIDraft)
	assert.Equal(t, model.StatusRead, updated.Status)
}

func TestUpdate_RejectedBeforeRemoteCall(t *testing.T) {
	tests := []struct {
		name   string
		actor  string
		fields map[string]any
		want   error
	}{
		{"unsupported field", "alice", map[string]any{"subject": "x"}, model.ErrUnsupportedField},
		{"unsupported mixed with valid", "alice", map[string]any{"status": "read", "urgency": "low"}, model.ErrUnsupportedField},
		{"invalid status", "alice", map[string]any{"status": "deleted"}, model.ErrInvalidValue},
		{"empty update", "alice", map[string]any{}, model.ErrInvalidValue},
		{"no actor", "", map[string]any{"status": "read"}, model.ErrAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
			repo := NewEmailRepository(fs, zap.NewNop())
			_, err := repo.Load(context.Background(), "alice")
			require.NoError(t, err)
			before := repo.Emails()

			_, err = repo.Update(context.Background(), tt.actor, "1", tt.fields)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int32(0), fs.patchCalls.Load())
			assert.Equal(t, before, repo.Emails())
		})
	}
}

func TestUpdate_FailureLeavesCacheUntouched(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())
	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	before := repo.Emails()

	fs.patchFn = func(string) error { return model.ErrStoreUnavailable }
	_, err = repo.Update(context.Background(), "alice", "1", map[string]any{"status": "archived"})
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Equal(t, before, repo.Emails())
}

func TestUpdate_NotFound(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())
	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)

	_, err = repo.Update(context.Background(), "alice", "nope", map[string]any{"status": "read"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Len(t, repo.Emails(), 1)
}

func TestUpdate_UncachedIdReturnsStoreRow(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())

	// 未 Load 时远程更新依然生效，但不写入缓存
	updated, err := repo.Update(context.Background(), "alice", "1", map[string]any{"status": "read"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, updated.Status)
	assert.Empty(t, repo.Emails())
}

func TestUpdate_SameIdSerialized(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	fs.patchDelay = 5 * time.Millisecond
	repo := NewEmailRepository(fs, zap.NewNop())
	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)

	statuses := []string{"read", "replied", "archived", "unread", "read", "replied", "archived", "unread"}
	var wg sync.WaitGroup
	for _, s := range statuses {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			_, err := repo.Update(context.Background(), "alice", "1", map[string]any{"status": status})
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	assert.False(t, fs.overlapping.Load(), "patches for the same id overlapped")
	assert.Equal(t, int32(len(statuses)), fs.patchCalls.Load())
	assert.Equal(t, 0, repo.locks.size())

	// 缓存与存储最终一致
	stored, _ := fs.List(context.Background(), "alice")
	cached, _ := repo.Get("1")
	assert.Equal(t, stored[0].Status, cached.Status)
}

func TestUpdate_DifferentIdsRunInParallel(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread), mkEmail("2", model.StatusUnread))
	release := make(chan struct{})
	started := make(chan string, 2)
	fs.patchFn = func(id string) error {
		started <- id
		<-release
		return nil
	}
	repo := NewEmailRepository(fs, zap.NewNop())

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = repo.Update(context.Background(), "alice", id, map[string]any{"status": "read"})
		}(id)
	}

	// 两个 id 都进入 Patch 才说明没有互相阻塞
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("updates for different ids blocked each other")
		}
	}
	close(release)
	wg.Wait()
}

func TestLoad_KeepsUpdateConfirmedDuringList(t *testing.T) {
	tests := []struct {
		name string
		warm bool
	}{
		{name: "warm cache", warm: true},
		{name: "cold cache", warm: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fs := newFakeStore("alice", mkEmail("1", model.StatusUnread), mkEmail("2", model.StatusUnread))
			repo := NewEmailRepository(fs, zap.NewNop())
			if tt.warm {
				_, err := repo.Load(ctx, "alice")
				require.NoError(t, err)
			}

			started := make(chan struct{})
			release := make(chan struct{})
			fs.afterList = func() {
				close(started)
				<-release
			}

			done := make(chan error, 1)
			go func() {
				_, err := repo.Load(ctx, "alice")
				done <- err
			}()
			<-started

			_, err := repo.Update(ctx, "alice", "1", map[string]any{"status": "read"})
			require.NoError(t, err)

			close(release)
			require.NoError(t, <-done)

			cached, ok := repo.Get("1")
			require.True(t, ok)
			assert.Equal(t, model.StatusRead, cached.Status)
			other, ok := repo.Get("2")
			require.True(t, ok)
			assert.Equal(t, model.StatusUnread, other.Status)

			// 之后的 Load 不再重放
			fs.afterList = nil
			emails, err := repo.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, model.StatusRead, emails[0].Status)
		})
	}
}

func TestEmails_ReturnsCopies(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	repo := NewEmailRepository(fs, zap.NewNop())
	_, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)

	snapshot := repo.Emails()
	snapshot[0].Status = model.StatusArchived
	snapshot[0].Contacts[0] = "mutated"

	fresh, _ := repo.Get("1")
	assert.Equal(t, model.StatusUnread, fresh.Status)
	assert.Equal(t, []string{"c"}, fresh.Contacts)
}

func TestSessions(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	sessions := NewSessions(fs, zap.NewNop())

	_, err := sessions.For("")
	assert.ErrorIs(t, err, model.ErrAuthRequired)

	emails, err := sessions.Emails(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Len(t, emails, 1)

	// 已加载时不再访问存储
	_, err = sessions.Emails(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.listCalls.Load())

	_, err = sessions.Emails(context.Background(), "alice", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.listCalls.Load())

	e, err := sessions.Get(context.Background(), "alice", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", e.ID)

	_, err = sessions.Get(context.Background(), "alice", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	bobEmails, err := sessions.Emails(context.Background(), "bob", false)
	require.NoError(t, err)
	assert.Empty(t, bobEmails)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessions_EvictIdle(t *testing.T) {
	fs := newFakeStore("alice", mkEmail("1", model.StatusUnread))
	sessions := NewSessions(fs, zap.NewNop())
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := sessions.Emails(ctx, "alice", false)
	require.NoError(t, err)
	_, err = sessions.Emails(ctx, "bob", false)
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = sessions.Emails(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.listCalls.Load())

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, sessions.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, sessions.Len())

	// alice 仍在缓存；bob 被丢弃后重新加载
	_, err = sessions.Emails(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.listCalls.Load())
	_, err = sessions.Emails(ctx, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fs.listCalls.Load())
}

func TestSessions_StartEvictionStopsOnCancel(t *testing.T) {
	sessions := NewSessions(newFakeStore("alice"), zap.NewNop())
	_, err := sessions.For("alice")
	require.NoError(t, err)
	sessions.now = func() time.Time { return time.Now().Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sessions.StartEviction(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sessions.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("eviction loop did not stop")
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock("a")
	unlockB := km.Lock("b")
	assert.Equal(t, 2, km.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, km.size())
}
