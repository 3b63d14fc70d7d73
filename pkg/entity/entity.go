// Package entity defines the group-scoped domain model: accounts,
// transactions, purchase positions and attachments, plus the share maps that
// tie them together. All monetary values and share weights are
// decimal.Decimal; ids are signed 64-bit integers where a negative id marks
// an entity the server has never acknowledged.
package entity

import "time"

// Kind names an entity family for id allocation, subscriptions and logging.
type Kind string

const (
	KindAccount     Kind = "account"
	KindTransaction Kind = "transaction"
	KindPosition    Kind = "position"
	KindAttachment  Kind = "attachment"
)

// Snapshot is the contract every stored entity satisfies. Layers hold
// immutable snapshots: mutation always goes through Clone, never in place.
type Snapshot[T any] interface {
	EntityID() int64
	IsDeleted() bool
	Clone() T
	SetWorkInProgress(wip bool)
	Touch(now time.Time)
}

// IsLocal reports whether id was minted locally and never acknowledged by
// the server. Zero is never used as an id.
func IsLocal(id int64) bool { return id < 0 }
