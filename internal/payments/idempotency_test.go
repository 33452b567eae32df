package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdempotencyStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{
		values: map[string]string{},
		ttls:   map[string]time.Duration{},
	}
}

func (s *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = "1"
	s.ttls[key] = ttl
	return true, nil
}

func (s *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "wp:idempotency:" + scope + ":" + id
}

func (s *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestCheckAndMarkClaimsFirstDelivery(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Equal(t, time.Hour, store.ttls["wp:idempotency:stripe:evt_1"])
}

func TestDeleteReleasesClaimForRetry(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.NoError(t, guard.Delete(ctx, "evt_1"))

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardConstructorValidation(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, "stripe")
	assert.Error(t, err)

	_, err = NewIdempotencyGuard(newFakeIdempotencyStore(), time.Hour, "")
	assert.Error(t, err)
}

func TestCheckAndMarkRequiresEventID(t *testing.T) {
	guard, err := NewIdempotencyGuard(newFakeIdempotencyStore(), time.Hour, "stripe")
	require.NoError(t, err)

	_, err = guard.CheckAndMark(context.Background(), "")
	assert.Error(t, err)
}
