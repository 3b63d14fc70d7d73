// Package notify routes server push events to interested observers. One
// inbound event channel is dispatched against a subscription registry;
// observers of the same (type, element) pair share a single transport
// subscription, reference-counted so the transport is only told to
// unsubscribe when the last observer detaches.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/pkg/connection"
	"github.com/splitledger/splitledger/pkg/logger"
)

// Handler receives every notification matching the observed subscription.
// Handlers run on the router goroutine and must not block.
type Handler func(connection.NotificationData)

type Router struct {
	transport connection.PushTransport
	log       logger.Logger

	// opMu serializes Observe and cancel end to end so the registry and the
	// transport's subscription state cannot diverge. mu alone guards the
	// registry for dispatch.
	opMu sync.Mutex

	mu   sync.Mutex
	subs map[connection.Subscription]map[uuid.UUID]Handler
}

func NewRouter(transport connection.PushTransport, log logger.Logger) *Router {
	if log == nil {
		log = logger.Nop{}
	}
	return &Router{
		transport: transport,
		log:       log,
		subs:      make(map[connection.Subscription]map[uuid.UUID]Handler),
	}
}

// Run consumes the transport's notification stream until ctx is done.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-r.transport.Notifications():
			if !ok {
				return
			}
			r.dispatch(data)
		}
	}
}

func (r *Router) dispatch(data connection.NotificationData) {
	sub := connection.Subscription{Type: data.SubscriptionType, ElementID: data.ElementID}
	r.mu.Lock()
	handlers := make([]Handler, 0, len(r.subs[sub]))
	for _, h := range r.subs[sub] {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()
	if len(handlers) == 0 {
		r.log.Debug("notification without observer", "subscription_type", data.SubscriptionType, "element_id", data.ElementID)
		return
	}
	for _, h := range handlers {
		h(data)
	}
}

// Observe attaches a handler to the subscription. The first observer of a
// pair subscribes on the transport; further observers share it. The handler
// is registered only after the transport call succeeds, so a failed
// subscription leaves no observer behind. The returned cancel detaches the
// handler and unsubscribes from the transport once no observer remains.
// Cancel is idempotent.
func (r *Router) Observe(ctx context.Context, sub connection.Subscription, h Handler) (func(), error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	first := len(r.subs[sub]) == 0
	r.mu.Unlock()

	if first {
		if err := r.transport.Subscribe(ctx, sub); err != nil {
			return nil, fmt.Errorf("subscribe %s/%d: %w", sub.Type, sub.ElementID, err)
		}
	}

	token := uuid.New()
	r.mu.Lock()
	if r.subs[sub] == nil {
		r.subs[sub] = make(map[uuid.UUID]Handler)
	}
	r.subs[sub][token] = h
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.opMu.Lock()
			defer r.opMu.Unlock()
			r.mu.Lock()
			delete(r.subs[sub], token)
			last := len(r.subs[sub]) == 0
			if last {
				delete(r.subs, sub)
			}
			r.mu.Unlock()
			if last {
				if err := r.transport.Unsubscribe(context.Background(), sub); err != nil {
					r.log.Warn("unsubscribe failed", "subscription_type", sub.Type, "element_id", sub.ElementID, "error", err)
				}
			}
		})
	}
	return cancel, nil
}
