package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/contentsync/pkg/scc"
)

func TestSyncSubscriptionsOEMSynthesis(t *testing.T) {
	starts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{subscriptions: []scc.SubscriptionRecord{{
		ID: 500, Name: "OEM SLES", Type: "oem", Status: "ACTIVE",
		StartsAt: &starts, SystemLimit: 10, SKUs: []string{"874-005000"},
	}}}
	m, st := newTestManager(t, src, newFakeProber())

	require.NoError(t, m.SyncSubscriptions(testCtx()))

	item, ok := st.OrderItem(-500)
	require.True(t, ok, "OEM subscription must synthesize order item with negated id")
	assert.Equal(t, "874-005000", item.SKU)
	assert.Equal(t, int64(10), item.Quantity)
	assert.Equal(t, int64(500), item.SubscriptionID)
	assert.True(t, item.Synthetic())

	// removing the subscription removes the synthetic item
	src.subscriptions = nil
	require.NoError(t, m.SyncSubscriptions(testCtx()))
	_, ok = st.Subscription(500)
	assert.False(t, ok)
	_, ok = st.OrderItem(-500)
	assert.False(t, ok)
}

func TestSyncSubscriptionsOEMMultiSKU(t *testing.T) {
	src := &fakeSource{subscriptions: []scc.SubscriptionRecord{{
		ID: 501, Type: "oem", Status: "ACTIVE", SKUs: []string{"a", "b"},
	}}}
	m, st := newTestManager(t, src, newFakeProber())

	require.NoError(t, m.SyncSubscriptions(testCtx()))
	_, ok := st.OrderItem(-501)
	assert.False(t, ok, "multi-SKU OEM subscriptions synthesize nothing")
	_, ok = st.Subscription(501)
	assert.True(t, ok)
}

func TestSyncSubscriptionsOEMExpired(t *testing.T) {
	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{subscriptions: []scc.SubscriptionRecord{{
		ID: 502, Name: "OEM SLES", Type: "oem", Status: "ACTIVE",
		ExpiresAt: &expires, SKUs: []string{"874-006000"},
	}}}
	m, st := newTestManager(t, src, newFakeProber(),
		WithClock(func() time.Time {
			return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		}))

	require.NoError(t, m.SyncSubscriptions(testCtx()))

	_, ok := st.OrderItem(-502)
	assert.False(t, ok, "expired OEM subscriptions synthesize nothing")
	_, ok = st.Subscription(502)
	assert.True(t, ok, "the subscription row itself is still cached")
}

func TestSyncSubscriptionsOrderItems(t *testing.T) {
	src := &fakeSource{
		orders: []scc.OrderRecord{{
			ID: 1,
			OrderItems: []scc.OrderItemRecord{
				{ID: 7, SKU: "874-001", Quantity: 3, SubscriptionID: 600},
			},
		}},
	}
	m, st := newTestManager(t, src, newFakeProber())

	require.NoError(t, m.SyncSubscriptions(testCtx()))
	item, ok := st.OrderItem(7)
	require.True(t, ok)
	assert.Equal(t, int64(3), item.Quantity)

	src.orders = nil
	require.NoError(t, m.SyncSubscriptions(testCtx()))
	_, ok = st.OrderItem(7)
	assert.False(t, ok, "stale order items are pruned")
}

func TestSyncSubscriptionsUpsert(t *testing.T) {
	src := &fakeSource{subscriptions: []scc.SubscriptionRecord{{
		ID: 600, Name: "SLES", Type: "full", Status: "ACTIVE", SystemLimit: 5,
	}}}
	m, st := newTestManager(t, src, newFakeProber())

	require.NoError(t, m.SyncSubscriptions(testCtx()))
	sub, ok := st.Subscription(600)
	require.True(t, ok)
	assert.Equal(t, int64(5), sub.SystemLimit)
	require.NotNil(t, sub.CredentialID)
	assert.Equal(t, int64(1), *sub.CredentialID)

	src.subscriptions[0].SystemLimit = 8
	require.NoError(t, m.SyncSubscriptions(testCtx()))
	sub, ok = st.Subscription(600)
	require.True(t, ok)
	assert.Equal(t, int64(8), sub.SystemLimit)
}
