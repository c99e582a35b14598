package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "emailai/contracts/mq"
)

type fakeCache struct {
	err         error
	invalidated []string
}

func (f *fakeCache) Invalidate(_ context.Context, actor string) error {
	if f.err != nil {
		return f.err
	}
	f.invalidated = append(f.invalidated, actor)
	return nil
}

type fakeDeduper struct {
	seen     map[string]bool
	released int
}

func (f *fakeDeduper) AcquireOnce(_ context.Context, handler, eventID string) bool {
	key := handler + ":" + eventID
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

func (f *fakeDeduper) Release(_ context.Context, handler, eventID string) {
	delete(f.seen, handler+":"+eventID)
	f.released++
}

type fakeCounter struct {
	counts map[string]int64
}

func (f *fakeCounter) IncrementAndGet(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

type fakeDLQ struct {
	messages []string
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, _ string, _ []byte, originalError, _ string) error {
	f.messages = append(f.messages, originalError)
	return nil
}

type fixture struct {
	cache   *fakeCache
	deduper *fakeDeduper
	dlq     *fakeDLQ
	handler *EmailUpdatedStatsHandler
}

func newFixture() *fixture {
	f := &fixture{
		cache:   &fakeCache{},
		deduper: &fakeDeduper{seen: make(map[string]bool)},
		dlq:     &fakeDLQ{},
	}
	f.handler = NewEmailUpdatedStatsHandler(f.cache, f.deduper, &fakeCounter{counts: make(map[string]int64)}, f.dlq, zap.NewNop())
	return f
}

func payload(t *testing.T) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(mqcontracts.EmailUpdatedPayload{
		EventID:   "evt-1",
		EmailID:   "e1",
		UserID:    "user-1",
		Status:    "replied",
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)
	return b
}

func TestStatsHandler_InvalidatesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.handler.Handle(ctx, payload(t)))
	require.NoError(t, f.handler.Handle(ctx, payload(t)))

	assert.Equal(t, []string{"user-1"}, f.cache.invalidated)
	assert.Empty(t, f.dlq.messages)
}

func TestStatsHandler_BadPayloadGoesToDLQ(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.NoError(t, f.handler.Handle(ctx, json.RawMessage(`{not json`)))
	assert.NoError(t, f.handler.Handle(ctx, json.RawMessage(`{"event_id":"x"}`)))

	require.Len(t, f.dlq.messages, 2)
	assert.Contains(t, f.dlq.messages[0], "json_unmarshal_error")
	assert.Contains(t, f.dlq.messages[1], "invalid_payload")
	assert.Empty(t, f.cache.invalidated)
}

func TestStatsHandler_RetriesThenDLQ(t *testing.T) {
	f := newFixture()
	f.cache.err = errors.New("redis: connection refused")
	ctx := context.Background()

	for i := 1; i < DefaultMaxRetries; i++ {
		assert.Error(t, f.handler.Handle(ctx, payload(t)), "attempt %d", i)
	}
	assert.Equal(t, DefaultMaxRetries-1, f.deduper.released)
	assert.Empty(t, f.dlq.messages)

	assert.NoError(t, f.handler.Handle(ctx, payload(t)))
	require.Len(t, f.dlq.messages, 1)
	assert.Contains(t, f.dlq.messages[0], "connection refused")
}
