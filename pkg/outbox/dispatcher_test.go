package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emailai/pkg/trace"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[int64]*Event
}

func newFakeStore(events ...*Event) *fakeStore {
	s := &fakeStore{events: make(map[int64]*Event)}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *fakeStore) byStatus(status string) []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for id := int64(1); id <= int64(len(s.events)); id++ {
		if e, ok := s.events[id]; ok && e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	out := s.byStatus(StatusPending)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	return s.byStatus(StatusFailed), nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return e, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id].Status = StatusSent
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	e.RetryCount++
	if e.RetryCount >= maxRetries {
		e.Status = StatusFailed
	}
	return nil
}

type published struct {
	routingKey string
	body       string
	traceID    string
}

type fakePublisher struct {
	fail map[string]bool
	sent []published
}

func (p *fakePublisher) PublishRaw(ctx context.Context, routingKey string, body []byte) error {
	if p.fail[routingKey] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{routingKey, string(body), trace.FromContext(ctx)})
	return nil
}

func event(id int64, routingKey, payload string) *Event {
	return &Event{
		ID:            id,
		AggregateType: "email",
		AggregateID:   "e1",
		RoutingKey:    routingKey,
		Payload:       json.RawMessage(payload),
		Status:        StatusPending,
	}
}

func TestDispatcher_PublishesAndMarksSent(t *testing.T) {
	store := newFakeStore(
		event(1, "email.updated", `{"email_id":"e1","trace_id":"t-1"}`),
		event(2, "email.updated", `{"email_id":"e2"}`),
	)
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop())

	assert.Equal(t, 2, d.ProcessPending(context.Background()))
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "t-1", pub.sent[0].traceID)
	assert.Equal(t, "", pub.sent[1].traceID)
	assert.JSONEq(t, `{"email_id":"e2"}`, pub.sent[1].body)
	assert.Empty(t, store.byStatus(StatusPending))
}

func TestDispatcher_FailureRetriesThenFails(t *testing.T) {
	store := newFakeStore(event(1, "email.updated", `{}`))
	pub := &fakePublisher{fail: map[string]bool{"email.updated": true}}
	d := NewDispatcher(store, pub, zap.NewNop()).WithMaxRetries(2)

	assert.Equal(t, 0, d.ProcessPending(context.Background()))
	assert.Len(t, store.byStatus(StatusPending), 1)

	d.ProcessPending(context.Background())
	assert.Len(t, store.byStatus(StatusFailed), 1)
}

func TestDispatcher_InvalidPayloadCountsAsFailure(t *testing.T) {
	store := newFakeStore(event(1, "email.updated", `{not json`))
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop()).WithMaxRetries(1)

	d.ProcessPending(context.Background())
	assert.Empty(t, pub.sent)
	assert.Len(t, store.byStatus(StatusFailed), 1)
}

func TestReplayService_ReplayFailed(t *testing.T) {
	failed := event(1, "email.updated", `{"email_id":"e1"}`)
	failed.Status = StatusFailed
	store := newFakeStore(failed, event(2, "email.updated", `{}`))
	pub := &fakePublisher{}
	svc := NewReplayService(store, pub, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusSent, failed.Status)
	assert.Len(t, pub.sent, 1)
}

func TestReplayService_UnknownEvent(t *testing.T) {
	svc := NewReplayService(newFakeStore(), &fakePublisher{}, zap.NewNop())
	err := svc.ReplayEvent(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
