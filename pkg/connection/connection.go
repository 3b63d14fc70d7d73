// Package connection holds the thin transport clients: a typed HTTP client
// for the request/response API and a websocket client for server push. The
// engine consumes both through interfaces; everything here is replaceable by
// fakes in tests.
package connection

import (
	"context"

	"github.com/splitledger/splitledger/pkg/entity"
)

// API is the request/response transport the sync orchestrator consumes. All
// operations are group-scoped. Implementations map transport failures to
// apperr.ErrNoConnection, concurrent-modification rejections to
// apperr.ErrConflict and unknown ids to apperr.ErrNotFound.
type API interface {
	GetGroup(ctx context.Context, groupID int64) (*entity.Group, error)
	ListMembers(ctx context.Context, groupID int64) ([]*entity.GroupMember, error)

	ListAccounts(ctx context.Context, groupID int64) ([]*entity.Account, error)
	GetAccount(ctx context.Context, groupID, accountID int64) (*entity.Account, error)
	CreateAccount(ctx context.Context, a *entity.Account) (*entity.Account, error)
	UpdateAccount(ctx context.Context, a *entity.Account) (*entity.Account, error)
	DeleteAccount(ctx context.Context, groupID, accountID int64) (*entity.Account, error)
	DiscardAccountEdit(ctx context.Context, groupID, accountID int64) (*entity.Account, error)

	ListTransactions(ctx context.Context, groupID int64) ([]entity.TransactionRecord, error)
	GetTransaction(ctx context.Context, groupID, txID int64) (entity.TransactionRecord, error)
	CreateTransaction(ctx context.Context, rec entity.TransactionRecord) (entity.TransactionRecord, error)
	UpdateTransaction(ctx context.Context, rec entity.TransactionRecord) (entity.TransactionRecord, error)
	DeleteTransaction(ctx context.Context, groupID, txID int64) (entity.TransactionRecord, error)
	DiscardTransactionEdit(ctx context.Context, groupID, txID int64) (entity.TransactionRecord, error)
}

// PushTransport is the publish/subscribe side. Subscriptions survive
// reconnects: the transport re-issues every active subscription after
// re-establishing the connection, and notifications received in between are
// buffered. The buffer is bounded; an implementation that overflows it drops
// the oldest notification and logs the drop.
type PushTransport interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Subscribe(ctx context.Context, sub Subscription) error
	Unsubscribe(ctx context.Context, sub Subscription) error
	Notifications() <-chan NotificationData
}
