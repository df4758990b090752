package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() map[Operation]Rule {
	return map[Operation]Rule{
		OpOrderCreate:      {Max: 5, Window: time.Hour},
		OpPaymentCheck:     {Max: 10, Window: time.Minute},
		OpWalletTopup:      {Max: 5, Window: time.Hour},
		OpCartCheckout:     {Max: 10, Window: time.Hour},
		OpAnnouncementSend: {Max: 2, Window: 24 * time.Hour},
	}
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	rules := testRules()
	delete(rules, OpWalletTopup)
	_, err := New(NewMemoryStore(), rules)
	assert.Error(t, err)

	rules = testRules()
	rules[OpOrderCreate] = Rule{Max: 0, Window: time.Hour}
	_, err = New(NewMemoryStore(), rules)
	assert.Error(t, err)
}

func TestAllowWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	l, err := New(store, testRules())
	require.NoError(t, err)

	// 5 boleh, yang ke-6 ditolak
	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "user-1", OpOrderCreate)
		require.NoError(t, err)
		assert.True(t, ok, "call %d should be allowed", i+1)
	}
	ok, err := l.Allow(ctx, "user-1", OpOrderCreate)
	require.NoError(t, err)
	assert.False(t, ok, "6th order_create within the hour should be rejected")
}

func TestKindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l, err := New(store, testRules())
	require.NoError(t, err)

	// habiskan order_create
	for i := 0; i < 6; i++ {
		_, _ = l.Allow(ctx, "user-1", OpOrderCreate)
	}
	ok, err := l.Allow(ctx, "user-1", OpOrderCreate)
	require.NoError(t, err)
	require.False(t, ok)

	// payment_check tidak boleh ikut keblokir
	ok, err = l.Allow(ctx, "user-1", OpPaymentCheck)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, err := New(NewMemoryStore(), testRules())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, _ = l.Allow(ctx, "user-1", OpOrderCreate)
	}
	ok, err := l.Allow(ctx, "user-2", OpOrderCreate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	l, err := New(store, testRules())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, _ = l.Allow(ctx, "user-1", OpOrderCreate)
	}
	ok, _ := l.Allow(ctx, "user-1", OpOrderCreate)
	require.False(t, ok)

	// window lewat -> counter mulai dari nol lagi
	now = now.Add(time.Hour)
	ok, err = l.Allow(ctx, "user-1", OpOrderCreate)
	require.NoError(t, err)
	assert.True(t, ok)
}
