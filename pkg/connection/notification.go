package connection

// SubscriptionType names the entity family a push subscription covers.
type SubscriptionType string

const (
	SubscriptionAccount     SubscriptionType = "account"
	SubscriptionTransaction SubscriptionType = "transaction"
	SubscriptionGroup       SubscriptionType = "group"
	SubscriptionGroupMember SubscriptionType = "group_member"
	SubscriptionGroupInvite SubscriptionType = "group_invite"
	SubscriptionGroupLog    SubscriptionType = "group_log"
)

// Subscription identifies one (type, element) pair on the push transport.
// For account and transaction subscriptions the element is the group id.
type Subscription struct {
	Type      SubscriptionType `json:"subscription_type"`
	ElementID int64            `json:"element_id"`
}

// NotificationData is the payload of a server push: the named element of
// the subscription changed.
type NotificationData struct {
	SubscriptionType SubscriptionType `json:"subscription_type"`
	ElementID        int64            `json:"element_id"`
	GroupID          int64            `json:"group_id,omitempty"`
	EntityID         int64            `json:"entity_id,omitempty"`
}

// Message is the websocket wire envelope, both directions. Requests carry a
// correlation ID echoed by the server response.
type Message struct {
	Type  string           `json:"type"`
	ID    string           `json:"id,omitempty"`
	Token string           `json:"token,omitempty"`
	Data  NotificationData `json:"data,omitempty"`
	Error string           `json:"error,omitempty"`
}

const (
	messageNotification = "notification"
	messageSubscribe    = "subscribe"
	messageUnsubscribe  = "unsubscribe"
	messageSuccess      = "success"
	messageError        = "error"
)
