package entity

import "time"

// Group is the billing context scoping all accounts and transactions. The
// engine consumes it read-only.
type Group struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	CurrencyIdentifier string    `json:"currency_identifier"`
	CreatedAt          time.Time `json:"created_at"`
}

// GroupMember carries membership and write-permission metadata used to gate
// whether local edits are permitted.
type GroupMember struct {
	GroupID  int64     `json:"group_id"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	IsOwner  bool      `json:"is_owner"`
	CanWrite bool      `json:"can_write"`
	JoinedAt time.Time `json:"joined_at"`
}
