package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/logger"
)

// State is the websocket connection lifecycle state.
type State int

const (
	StateUnknown State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// TransitionTo validates a state change and returns the new state.
func (s State) TransitionTo(next State) (State, error) {
	switch s {
	case StateConnecting:
		switch next {
		case StateConnected, StateDisconnected:
			return next, nil
		}
	case StateConnected:
		switch next {
		case StateDisconnecting, StateDisconnected:
			return next, nil
		}
	case StateDisconnecting:
		if next == StateDisconnected {
			return next, nil
		}
	case StateDisconnected:
		switch next {
		case StateConnecting, StateDisconnected:
			return next, nil
		}
	}
	return StateUnknown, fmt.Errorf("invalid state transition from %v to %v", s, next)
}

const (
	defaultCheckInterval = 5 * time.Second
	requestTimeout       = 10 * time.Second
	notificationBuffer   = 256
)

// WSClient maintains the push connection. Active subscriptions are tracked
// and re-issued automatically after a reconnect. Notifications are delivered
// through a bounded buffer; when the consumer falls behind and the buffer
// fills, the oldest notification is dropped and the drop is logged. A
// consumer that missed a notification catches up on the next full pull.
type WSClient struct {
	url   string
	token string
	log   logger.Logger

	// CheckInterval is how often the reconnection loop probes a lost
	// connection. Zero means the default of 5s.
	CheckInterval time.Duration

	dialer *websocket.Dialer

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	connDown  bool
	subs      map[Subscription]struct{}
	responses map[string]chan Message

	writeMu sync.Mutex

	notifications chan NotificationData
	closeCh       chan struct{}
	loopDone      chan struct{}
}

var _ PushTransport = (*WSClient)(nil)

func NewWSClient(url, token string, log logger.Logger) *WSClient {
	if log == nil {
		log = logger.Nop{}
	}
	dialer := *websocket.DefaultDialer
	dialer.EnableCompression = true
	return &WSClient{
		url:           url,
		token:         token,
		log:           log,
		dialer:        &dialer,
		state:         StateDisconnected,
		subs:          make(map[Subscription]struct{}),
		responses:     make(map[string]chan Message),
		notifications: make(chan NotificationData, notificationBuffer),
	}
}

func (c *WSClient) transitionTo(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.state.TransitionTo(next)
	if err != nil {
		return err
	}
	c.state = s
	c.log.Debug("push connection state changed", "state", s)
	return nil
}

func (c *WSClient) mustTransitionTo(next State) {
	if err := c.transitionTo(next); err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
}

// Connect establishes the connection and starts the reconnection loop. The
// initial connection failure is returned to the caller; later losses are
// handled by the loop.
func (c *WSClient) Connect(ctx context.Context) error {
	if err := c.transitionTo(StateConnecting); err != nil {
		return err
	}
	conn, err := c.dial(ctx)
	if err != nil {
		c.mustTransitionTo(StateDisconnected)
		return fmt.Errorf("%w: %v", apperr.ErrNoConnection, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connDown = false
	c.closeCh = make(chan struct{})
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.reconnectLoop()

	c.mustTransitionTo(StateConnected)
	return nil
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	return conn, err
}

// Close stops the reconnection loop and closes the connection.
func (c *WSClient) Close(ctx context.Context) error {
	if err := c.transitionTo(StateDisconnecting); err != nil {
		return fmt.Errorf("connection already closing or closed: %w", err)
	}
	defer c.mustTransitionTo(StateDisconnected)

	c.mu.Lock()
	close(c.closeCh)
	conn := c.conn
	done := c.loopDone
	c.mu.Unlock()

	<-done
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.connDown = true
			}
			c.mu.Unlock()
			c.log.Warn("push connection lost", "error", err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *WSClient) dispatch(msg Message) {
	if msg.Type == messageNotification {
		select {
		case c.notifications <- msg.Data:
		default:
			// Buffer full: drop the oldest rather than the newest.
			select {
			case dropped := <-c.notifications:
				c.log.Warn("notification buffer full, dropping oldest",
					"capacity", notificationBuffer,
					"subscription_type", dropped.SubscriptionType,
					"element_id", dropped.ElementID)
			default:
			}
			c.notifications <- msg.Data
		}
		return
	}
	c.mu.Lock()
	ch, ok := c.responses[msg.ID]
	if ok {
		delete(c.responses, msg.ID)
	}
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *WSClient) reconnectLoop() {
	interval := c.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	c.mu.Lock()
	closeCh := c.closeCh
	done := c.loopDone
	c.mu.Unlock()
	defer close(done)

	for {
		select {
		case <-closeCh:
			return
		case <-time.After(interval):
		}

		c.mu.Lock()
		down := c.connDown
		c.mu.Unlock()
		if !down {
			continue
		}

		c.log.Info("attempting to reconnect push transport")
		conn, err := c.dial(context.Background())
		if err != nil {
			c.log.Error("reconnect failed", "error", err)
			continue
		}
		c.mu.Lock()
		c.conn = conn
		c.connDown = false
		subs := make([]Subscription, 0, len(c.subs))
		for sub := range c.subs {
			subs = append(subs, sub)
		}
		c.mu.Unlock()
		go c.readLoop(conn)

		// Re-issue every active subscription on the fresh connection.
		for _, sub := range subs {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			if err := c.request(ctx, messageSubscribe, sub); err != nil {
				c.log.Error("re-subscribe failed", "subscription_type", sub.Type, "element_id", sub.ElementID, "error", err)
			}
			cancel()
		}
		c.log.Info("push transport reconnected", "subscriptions", len(subs))
	}
}

// Subscribe registers the subscription and requests it from the server. The
// registration survives the request failing: a later reconnect re-issues it.
func (c *WSClient) Subscribe(ctx context.Context, sub Subscription) error {
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()
	return c.request(ctx, messageSubscribe, sub)
}

// Unsubscribe removes the registration and informs the server.
func (c *WSClient) Unsubscribe(ctx context.Context, sub Subscription) error {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
	return c.request(ctx, messageUnsubscribe, sub)
}

// Notifications is the inbound push stream.
func (c *WSClient) Notifications() <-chan NotificationData {
	return c.notifications
}

// request performs one correlated round trip over the socket.
func (c *WSClient) request(ctx context.Context, msgType string, sub Subscription) error {
	c.mu.Lock()
	conn := c.conn
	down := c.connDown
	if conn == nil || down {
		c.mu.Unlock()
		return apperr.ErrNoConnection
	}
	id := uuid.NewString()
	ch := make(chan Message, 1)
	c.responses[id] = ch
	c.mu.Unlock()

	msg := Message{
		Type:  msgType,
		ID:    id,
		Token: c.token,
		Data: NotificationData{
			SubscriptionType: sub.Type,
			ElementID:        sub.ElementID,
		},
	}
	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.dropResponse(id)
		return fmt.Errorf("%w: %v", apperr.ErrNoConnection, err)
	}

	select {
	case <-ctx.Done():
		c.dropResponse(id)
		return ctx.Err()
	case resp := <-ch:
		if resp.Type == messageError {
			return fmt.Errorf("server rejected %s: %s", msgType, resp.Error)
		}
		return nil
	}
}

func (c *WSClient) dropResponse(id string) {
	c.mu.Lock()
	delete(c.responses, id)
	c.mu.Unlock()
}
