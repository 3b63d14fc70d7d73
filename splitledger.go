package splitledger

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/splitledger/splitledger/pkg/connection"
	"github.com/splitledger/splitledger/pkg/logger"
	"github.com/splitledger/splitledger/pkg/notify"
	"github.com/splitledger/splitledger/pkg/persist"
	"github.com/splitledger/splitledger/pkg/store"
	"github.com/splitledger/splitledger/pkg/syncer"
)

// Client is the engine's entry point: one client per server connection,
// handing out group handles that own a local store and its sync
// orchestrator.
type Client struct {
	api  connection.API
	push connection.PushTransport
	log  logger.Logger

	router  *notify.Router
	storage *persist.FileStore
	offline bool
	userID  int64
	refresh rate.Limit
	burst   int

	mu         sync.Mutex
	groups     map[int64]*Group
	stopRouter context.CancelFunc
}

type Option func(*Client)

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithOfflineQueue enables offline acceptance of saves: without connectivity
// an edit lands in the pending layer and is replayed by Flush.
func WithOfflineQueue() Option {
	return func(c *Client) { c.offline = true }
}

// WithPersistence stores unsent local edits under dir so they survive a
// restart.
func WithPersistence(dir string) Option {
	return func(c *Client) { c.storage = persist.NewFileStore(dir, c.log) }
}

// WithTransports replaces the default HTTP and websocket clients, mainly for
// tests. A nil push transport disables server push.
func WithTransports(api connection.API, push connection.PushTransport) Option {
	return func(c *Client) {
		c.api = api
		c.push = push
	}
}

// WithCurrentUser identifies the authenticated user so group membership can
// gate writes locally instead of bouncing them off the server.
func WithCurrentUser(userID int64) Option {
	return func(c *Client) { c.userID = userID }
}

// WithRefreshLimit throttles notification-driven re-fetches per group.
func WithRefreshLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.refresh = limit
		c.burst = burst
	}
}

// New builds a client against the server's REST base URL and websocket URL.
func New(baseURL, wsURL, token string, opts ...Option) *Client {
	c := &Client{
		log:     logger.Nop{},
		refresh: rate.Limit(2),
		burst:   5,
		groups:  make(map[int64]*Group),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		c.api = connection.NewHTTPClient(baseURL, token, c.log)
	}
	if c.push == nil && wsURL != "" {
		c.push = connection.NewWSClient(wsURL, token, c.log)
	}
	return c
}

// Start connects the push transport and begins dispatching notifications.
// A client without a push transport starts fine; it just never sees server
// push and relies on explicit pulls.
func (c *Client) Start(ctx context.Context) error {
	if c.push == nil {
		return nil
	}
	if err := c.push.Connect(ctx); err != nil {
		return fmt.Errorf("connect push transport: %w", err)
	}
	c.router = notify.NewRouter(c.push, c.log)
	routerCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.stopRouter = cancel
	c.mu.Unlock()
	go c.router.Run(routerCtx)
	return nil
}

// Close persists every group's unsent edits, detaches subscriptions and
// closes the push transport.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	groups := make([]*Group, 0, len(c.groups))
	for _, g := range c.groups {
		groups = append(groups, g)
	}
	stop := c.stopRouter
	c.mu.Unlock()

	var firstErr error
	for _, g := range groups {
		if err := g.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if stop != nil {
		stop()
	}
	if c.push != nil {
		if err := c.push.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Group returns the handle for a group, creating it on first use. Creation
// restores persisted local edits and subscribes to the group's account and
// transaction change feeds.
func (c *Client) Group(ctx context.Context, groupID int64) (*Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.groups[groupID]; ok {
		return g, nil
	}

	st := store.New(groupID, store.WithLogger(c.log))
	opts := []syncer.Option{
		syncer.WithLogger(c.log),
		syncer.WithRefreshLimit(c.refresh, c.burst),
	}
	if c.offline {
		opts = append(opts, syncer.WithOfflineQueue())
	}
	if c.userID != 0 {
		opts = append(opts, syncer.WithCurrentUser(c.userID))
	}
	g := &Group{
		id:      groupID,
		store:   st,
		syncer:  syncer.New(st, c.api, opts...),
		storage: c.storage,
		log:     c.log,
	}

	if c.storage != nil {
		snap, ok, err := c.storage.Load(groupID)
		if err != nil {
			return nil, err
		}
		if ok {
			st.ImportLocal(snap)
			c.log.Info("local edits restored", "group_id", groupID,
				"wip_accounts", len(snap.WIPAccounts), "pending_accounts", len(snap.PendingAccounts),
				"wip_transactions", len(snap.WIPTransactions), "pending_transactions", len(snap.PendingTransactions))
		}
	}

	if c.router != nil {
		if err := g.observe(ctx, c.router); err != nil {
			return nil, err
		}
	}

	c.groups[groupID] = g
	return g, nil
}
