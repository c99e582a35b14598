package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emailai/internal/draft"
	"emailai/internal/model"
	"emailai/internal/repository"
	"emailai/pkg/outbox"
	"emailai/pkg/rbac"
)

const testUser = "user-1"

type fakeStore struct {
	mu      sync.Mutex
	emails  map[string][]model.Email
	listErr error
}

func (f *fakeStore) List(_ context.Context, ownerID string) ([]model.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Email, 0, len(f.emails[ownerID]))
	for _, e := range f.emails[ownerID] {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (f *fakeStore) Patch(_ context.Context, id, ownerID string, patch model.EmailPatch) (model.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.emails[ownerID] {
		if e.ID == id {
			updated := patch.Apply(e)
			f.emails[ownerID][i] = updated
			return updated.Clone(), nil
		}
	}
	return model.Email{}, model.ErrNotFound
}

func sampleEmails() []model.Email {
	received := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	return []model.Email{
		{
			ID: "e1", Subject: "Urgent: billing issue", Content: "I was charged twice.",
			Sender:     model.Sender{Name: "Sarah Johnson", Email: "sarah@example.com"},
			ReceivedAt: received, Sentiment: model.SentimentNegative, Urgency: model.UrgencyUrgent,
			Category: model.CategoryBilling, Status: model.StatusUnread,
			Contacts: []string{}, Requests: []string{"refund"},
		},
		{
			ID: "e2", Subject: "Thanks for the update", Content: "Great work on the release.",
			Sender:     model.Sender{Name: "Mike Chen", Email: "mike@example.com"},
			ReceivedAt: received.Add(time.Hour), Sentiment: model.SentimentPositive, Urgency: model.UrgencyLow,
			Category: model.CategoryGeneral, Status: model.StatusRead,
			Contacts: []string{}, Requests: []string{},
		},
	}
}

type fakeCache struct {
	mu     sync.Mutex
	stats  map[string]model.EmailStats
	hits   int
	writes int
	drops  int
}

func (f *fakeCache) Get(_ context.Context, actor string) (model.EmailStats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[actor]
	if ok {
		f.hits++
	}
	return s, ok
}

func (f *fakeCache) Set(_ context.Context, actor string, stats model.EmailStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[actor] = stats
	f.writes++
}

func (f *fakeCache) Invalidate(_ context.Context, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stats, actor)
	f.drops++
	return nil
}

type testServer struct {
	engine *gin.Engine
	store  *fakeStore
	cache  *fakeCache
}

// newTestServer 用 X-Test-User 代替 JWT 中间件
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := &fakeStore{emails: map[string][]model.Email{testUser: sampleEmails()}}
	cache := &fakeCache{stats: make(map[string]model.EmailStats)}
	sessions := repository.NewSessions(st, zap.NewNop())

	emails := NewEmailHandler(sessions, draft.NewSeededSelector(1), cache, zap.NewNop())
	stats := NewStatsHandler(sessions, cache)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set(ContextUserID, u)
		}
		c.Next()
	})
	r.GET("/emails", emails.ListEmails)
	r.GET("/emails/:id", emails.GetEmail)
	r.PATCH("/emails/:id", emails.UpdateEmail)
	r.POST("/emails/:id/draft", emails.SuggestDraft)
	r.GET("/stats", stats.GetStats)

	return &testServer{engine: r, store: st, cache: cache}
}

func (s *testServer) do(method, path, body, user string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type listResponse struct {
	Emails   []model.Email `json:"emails"`
	Total    int           `json:"total"`
	Filtered bool          `json:"filtered"`
	Error    string        `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListEmails(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		query    string
		wantIDs  []string
		filtered bool
	}{
		{"no criteria", "", []string{"e1", "e2"}, false},
		{"search is case insensitive", "?search=BILLING", []string{"e1"}, true},
		{"search matches sender name", "?search=mike", []string{"e2"}, true},
		{"sentiment", "?sentiment=positive", []string{"e2"}, true},
		{"urgency", "?urgency=urgent", []string{"e1"}, true},
		{"all is no filter", "?sentiment=all&urgency=all", []string{"e1", "e2"}, false},
		{"no match", "?search=nothing-here", []string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/emails"+tt.query, "", testUser)
			require.Equal(t, http.StatusOK, w.Code)

			resp := decode[listResponse](t, w)
			got := make([]string, 0, len(resp.Emails))
			for _, e := range resp.Emails {
				got = append(got, e.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
			assert.Equal(t, 2, resp.Total)
			assert.Equal(t, tt.filtered, resp.Filtered)
		})
	}
}

func TestListEmails_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/emails", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/emails?sentiment=angry", "", testUser)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.store.listErr = errors.New("connection refused")
	w = s.do(http.MethodGet, "/emails?refresh=true", "", testUser)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode[listResponse](t, w)
	assert.NotNil(t, resp.Emails)
	assert.Empty(t, resp.Emails)
	assert.NotEmpty(t, resp.Error)
}

func TestGetEmail(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/emails/e2", "", testUser)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mike Chen", decode[model.Email](t, w).Sender.Name)

	w = s.do(http.MethodGet, "/emails/missing", "", testUser)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 其他用户看不到
	w = s.do(http.MethodGet, "/emails/e2", "", "user-2")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEmail(t *testing.T) {
	s := newTestServer(t)

	// 先加载缓存
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/emails", "", testUser).Code)

	w := s.do(http.MethodPatch, "/emails/e1", `{"status":"replied","aiDraft":"Thanks Sarah"}`, testUser)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[model.Email](t, w)
	assert.Equal(t, model.StatusReplied, updated.Status)
	require.NotNil(t, updated.AIDraft)
	assert.Equal(t, "Thanks Sarah", *updated.AIDraft)

	// 缓存已合并
	w = s.do(http.MethodGet, "/emails/e1", "", testUser)
	assert.Equal(t, model.StatusReplied, decode[model.Email](t, w).Status)

	w = s.do(http.MethodPatch, "/emails/e1", `{"aiDraft":null}`, testUser)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[model.Email](t, w).AIDraft)
}

func TestUpdateEmail_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		id   string
		body string
		user string
		want int
	}{
		{"unauthenticated", "e1", `{"status":"read"}`, "", http.StatusUnauthorized},
		{"malformed body", "e1", `{"status":`, testUser, http.StatusBadRequest},
		{"unsupported field", "e1", `{"subject":"x"}`, testUser, http.StatusBadRequest},
		{"invalid status", "e1", `{"status":"deleted"}`, testUser, http.StatusBadRequest},
		{"empty update", "e1", `{}`, testUser, http.StatusBadRequest},
		{"unknown id", "nope", `{"status":"read"}`, testUser, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPatch, "/emails/"+tt.id, tt.body, tt.user)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	// 失败的更新不改变存储
	assert.Equal(t, model.StatusUnread, s.store.emails[testUser][0].Status)
}

func TestSuggestDraft(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/emails/e1/draft", "", testUser)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string]string](t, w)
	assert.Contains(t, resp["draft"], "Sarah Johnson")
	assert.Equal(t, draft.SourceTemplate, resp["source"])

	w = s.do(http.MethodPost, "/emails/missing/draft", "", testUser)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats_UsesCache(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/stats", "", testUser)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[model.EmailStats](t, w)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Unread)
	assert.Equal(t, 1, s.cache.writes)

	w = s.do(http.MethodGet, "/stats", "", testUser)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.cache.hits)
	assert.Equal(t, 1, s.cache.writes)
}

func TestUpdateEmail_InvalidatesStats(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/stats", "", testUser)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[model.EmailStats](t, w).Unread)

	// 被拒绝的更新不影响缓存
	w = s.do(http.MethodPatch, "/emails/e1", `{"status":"deleted"}`, testUser)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.cache.drops)

	w = s.do(http.MethodPatch, "/emails/e1", `{"status":"read"}`, testUser)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.cache.drops)

	w = s.do(http.MethodGet, "/stats", "", testUser)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[model.EmailStats](t, w).Unread)
	assert.Equal(t, 0, s.cache.hits)
	assert.Equal(t, 2, s.cache.writes)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrAuthRequired, http.StatusUnauthorized},
		{fmt.Errorf("list: %w", model.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.Join(model.ErrStoreUnavailable, model.ErrInvalidValue), http.StatusServiceUnavailable},
		{model.ErrInvalidValue, http.StatusBadRequest},
		{model.ErrUnsupportedField, http.StatusBadRequest},
		{model.ErrNotFound, http.StatusNotFound},
		{rbac.CheckPermission("u", rbac.RoleUser, rbac.PermissionReplayOutbox), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

type fakeReplayer struct {
	replayed []int64
}

func (f *fakeReplayer) ReplayEvent(_ context.Context, id int64) error {
	if id == 404 {
		return fmt.Errorf("%w: %d", outbox.ErrEventNotFound, id)
	}
	f.replayed = append(f.replayed, id)
	return nil
}

func (f *fakeReplayer) ReplayFailedEvents(_ context.Context, limit int) (int, error) {
	return limit / 2, nil
}

func TestAdminHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rp := &fakeReplayer{}
	h := NewAdminHandler(rp, zap.NewNop())

	r := gin.New()
	r.POST("/admin/outbox/replay", h.ReplayOutboxEvent)
	r.POST("/admin/outbox/replay-failed", h.ReplayFailedEvents)

	send := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, send("/admin/outbox/replay?id=7").Code)
	assert.Equal(t, []int64{7}, rp.replayed)
	assert.Equal(t, http.StatusBadRequest, send("/admin/outbox/replay").Code)
	assert.Equal(t, http.StatusBadRequest, send("/admin/outbox/replay?id=abc").Code)
	assert.Equal(t, http.StatusNotFound, send("/admin/outbox/replay?id=404").Code)

	w := send("/admin/outbox/replay-failed?limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success_count":5`)
}
