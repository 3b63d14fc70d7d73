package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/pkg/connection"
	"github.com/splitledger/splitledger/pkg/notify"
)

type fakeTransport struct {
	mu           sync.Mutex
	active       map[connection.Subscription]int
	subscribeErr error
	events       chan connection.NotificationData
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		active: map[connection.Subscription]int{},
		events: make(chan connection.NotificationData, 16),
	}
}

func (f *fakeTransport) Connect(context.Context) error { return nil }
func (f *fakeTransport) Close(context.Context) error   { return nil }

func (f *fakeTransport) Subscribe(_ context.Context, sub connection.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.active[sub]++
	return nil
}

func (f *fakeTransport) failSubscriptions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

func (f *fakeTransport) Unsubscribe(_ context.Context, sub connection.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[sub]--
	return nil
}

func (f *fakeTransport) Notifications() <-chan connection.NotificationData { return f.events }

func (f *fakeTransport) count(sub connection.Subscription) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[sub]
}

func TestObserversShareOneSubscription(t *testing.T) {
	tr := newFakeTransport()
	r := notify.NewRouter(tr, nil)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go r.Run(ctx)

	sub := connection.Subscription{Type: connection.SubscriptionTransaction, ElementID: 7}

	var got1, got2 []int64
	var mu sync.Mutex
	cancel1, err := r.Observe(ctx, sub, func(d connection.NotificationData) {
		mu.Lock()
		got1 = append(got1, d.EntityID)
		mu.Unlock()
	})
	require.NoError(t, err)
	cancel2, err := r.Observe(ctx, sub, func(d connection.NotificationData) {
		mu.Lock()
		got2 = append(got2, d.EntityID)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tr.count(sub), "duplicate observers must share one transport subscription")

	tr.events <- connection.NotificationData{SubscriptionType: sub.Type, ElementID: 7, EntityID: 42}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got1) == 1 && len(got2) == 1
	}, time.Second, 5*time.Millisecond)

	// Unsubscribing one observer keeps the transport subscription alive.
	cancel1()
	assert.Equal(t, 1, tr.count(sub))

	cancel2()
	assert.Equal(t, 0, tr.count(sub), "last detach must unsubscribe from the transport")

	// Cancel is idempotent.
	cancel2()
	assert.Equal(t, 0, tr.count(sub))
}

func TestFailedSubscribeLeavesNoObserver(t *testing.T) {
	tr := newFakeTransport()
	tr.failSubscriptions(errors.New("connection refused"))
	r := notify.NewRouter(tr, nil)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go r.Run(ctx)

	sub := connection.Subscription{Type: connection.SubscriptionAccount, ElementID: 7}

	_, err := r.Observe(ctx, sub, func(connection.NotificationData) {})
	require.Error(t, err)
	assert.Equal(t, 0, tr.count(sub), "failed subscribe must leave no transport subscription")

	// Recovery: a later observer of the same pair must get a live transport
	// subscription of its own instead of piggybacking on the failed one.
	tr.failSubscriptions(nil)

	var calls int
	var mu sync.Mutex
	cancel, err := r.Observe(ctx, sub, func(connection.NotificationData) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 1, tr.count(sub))

	tr.events <- connection.NotificationData{SubscriptionType: sub.Type, ElementID: 7, EntityID: 1}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDispatchOnlyMatchingSubscription(t *testing.T) {
	tr := newFakeTransport()
	r := notify.NewRouter(tr, nil)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go r.Run(ctx)

	var calls int
	var mu sync.Mutex
	_, err := r.Observe(ctx, connection.Subscription{Type: connection.SubscriptionAccount, ElementID: 7}, func(connection.NotificationData) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)

	tr.events <- connection.NotificationData{SubscriptionType: connection.SubscriptionTransaction, ElementID: 7}
	tr.events <- connection.NotificationData{SubscriptionType: connection.SubscriptionAccount, ElementID: 8}
	tr.events <- connection.NotificationData{SubscriptionType: connection.SubscriptionAccount, ElementID: 7}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
}
