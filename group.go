package splitledger

import (
	"context"

	"github.com/splitledger/splitledger/pkg/balance"
	"github.com/splitledger/splitledger/pkg/connection"
	"github.com/splitledger/splitledger/pkg/entity"
	"github.com/splitledger/splitledger/pkg/logger"
	"github.com/splitledger/splitledger/pkg/notify"
	"github.com/splitledger/splitledger/pkg/persist"
	"github.com/splitledger/splitledger/pkg/settle"
	"github.com/splitledger/splitledger/pkg/store"
	"github.com/splitledger/splitledger/pkg/syncer"
)

// Group is the per-group surface the application works against: local reads
// and edits on the layered store, server round trips through the syncer, and
// derived views computed on demand and memoized per store revision.
type Group struct {
	id      int64
	store   *store.Store
	syncer  *syncer.Syncer
	storage *persist.FileStore
	log     logger.Logger

	cancels []func()
}

func (g *Group) ID() int64 { return g.id }

// Revision reports the store's mutation counter. It advances on every local
// or pulled change, so pollers can cheaply detect "something happened".
func (g *Group) Revision() uint64 { return g.store.Revision() }

func (g *Group) observe(ctx context.Context, router *notify.Router) error {
	onAccount := func(d connection.NotificationData) {
		go func() {
			if err := g.syncer.RefreshAccount(context.Background(), d.EntityID); err != nil {
				g.log.Warn("account refresh failed", "group_id", g.id, "account_id", d.EntityID, "error", err)
			}
		}()
	}
	onTransaction := func(d connection.NotificationData) {
		go func() {
			if err := g.syncer.RefreshTransaction(context.Background(), d.EntityID); err != nil {
				g.log.Warn("transaction refresh failed", "group_id", g.id, "transaction_id", d.EntityID, "error", err)
			}
		}()
	}

	cancelA, err := router.Observe(ctx, connection.Subscription{Type: connection.SubscriptionAccount, ElementID: g.id}, onAccount)
	if err != nil {
		return err
	}
	g.cancels = append(g.cancels, cancelA)
	cancelT, err := router.Observe(ctx, connection.Subscription{Type: connection.SubscriptionTransaction, ElementID: g.id}, onTransaction)
	if err != nil {
		return err
	}
	g.cancels = append(g.cancels, cancelT)
	return nil
}

func (g *Group) close() error {
	for _, cancel := range g.cancels {
		cancel()
	}
	return g.SaveLocal()
}

// SaveLocal writes the unsent local edits to the configured persistence
// directory. A no-op without persistence.
func (g *Group) SaveLocal() error {
	if g.storage == nil {
		return nil
	}
	return g.storage.Save(g.store.ExportLocal())
}

// Pull refreshes the confirmed layer from the server.
func (g *Group) Pull(ctx context.Context) error { return g.syncer.Pull(ctx) }

// Info returns the group metadata from the last pull.
func (g *Group) Info() (*entity.Group, bool) { return g.syncer.Group() }

// Members returns the membership list from the last pull.
func (g *Group) Members() []*entity.GroupMember { return g.syncer.Members() }

// Flush replays offline-accepted edits against the server.
func (g *Group) Flush(ctx context.Context) error { return g.syncer.Flush(ctx) }

// --- accounts ---

func (g *Group) Accounts() []*entity.Account { return g.store.ListAccounts() }

func (g *Group) Account(id int64) (*entity.Account, bool) { return g.store.GetAccount(id) }

// NewAccount drafts an account with a freshly minted local id. It stays
// invisible to the server until saved.
func (g *Group) NewAccount(kind entity.AccountKind) *entity.Account {
	return g.store.CreateAccount(kind)
}

// UpdateAccount applies a partial update to the account's work-in-progress
// copy, opening an edit if none is open yet.
func (g *Group) UpdateAccount(id int64, patch entity.AccountPatch) error {
	return g.store.PatchAccount(id, patch)
}

// SaveAccount validates and pushes the open edit.
func (g *Group) SaveAccount(ctx context.Context, id int64) error {
	return g.syncer.PushAccount(ctx, id)
}

// DiscardAccount abandons the open edit. gone reports that the account
// existed only as a draft and vanished entirely.
func (g *Group) DiscardAccount(ctx context.Context, id int64) (gone bool, err error) {
	return g.syncer.DiscardAccount(ctx, id)
}

// DeleteAccount soft-deletes server-known accounts and purges drafts.
func (g *Group) DeleteAccount(ctx context.Context, id int64) error {
	return g.syncer.DeleteAccount(ctx, id)
}

// --- transactions ---

func (g *Group) Transactions() []*entity.Transaction { return g.store.ListTransactions() }

func (g *Group) Transaction(id int64) (*entity.Transaction, bool) { return g.store.GetTransaction(id) }

func (g *Group) NewTransaction(kind entity.TransactionKind) *entity.Transaction {
	return g.store.CreateTransaction(kind)
}

func (g *Group) UpdateTransaction(id int64, patch entity.TransactionPatch) error {
	return g.store.PatchTransaction(id, patch)
}

func (g *Group) SaveTransaction(ctx context.Context, id int64) error {
	return g.syncer.PushTransaction(ctx, id)
}

func (g *Group) DiscardTransaction(ctx context.Context, id int64) (gone bool, err error) {
	return g.syncer.DiscardTransaction(ctx, id)
}

func (g *Group) DeleteTransaction(ctx context.Context, id int64) error {
	return g.syncer.DeleteTransaction(ctx, id)
}

// --- positions and attachments ---

func (g *Group) NewPosition(txID int64) (*entity.Position, error) {
	return g.store.CreatePosition(txID)
}

func (g *Group) UpdatePosition(id int64, patch entity.PositionPatch) error {
	return g.store.PatchPosition(id, patch)
}

func (g *Group) Positions(txID int64) ([]*entity.Position, error) {
	return g.store.PositionsOf(txID)
}

func (g *Group) Attach(txID int64, filename, mimeType string, content []byte) (*entity.Attachment, error) {
	return g.store.CreateAttachment(txID, filename, mimeType, content)
}

func (g *Group) Attachments(txID int64) ([]*entity.Attachment, error) {
	return g.store.AttachmentsOf(txID)
}

// --- derived views ---

// Balances computes every account's balance from the merged view. The result
// is memoized per store revision, so repeated reads between mutations are
// free.
func (g *Group) Balances() (balance.BalanceMap, error) {
	v, err := g.store.Memoize("balances", func() (any, error) {
		return balance.Compute(g.store.ListAccounts(), g.store.ListTransactions(), g.store.PositionsOf)
	})
	if err != nil {
		return nil, err
	}
	return v.(balance.BalanceMap), nil
}

// Balance returns one account's derived balance.
func (g *Group) Balance(accountID int64) (balance.AccountBalance, error) {
	all, err := g.Balances()
	if err != nil {
		return balance.AccountBalance{}, err
	}
	return all[accountID], nil
}

// BalanceHistory returns the running balance of one account over the
// group's transactions in billing order.
func (g *Group) BalanceHistory(accountID int64) ([]balance.HistoryEntry, error) {
	return balance.History(accountID, g.store.ListTransactions(), g.store.PositionsOf)
}

// SettlementPlan proposes transfers that bring every balance to zero, at
// most one fewer than the number of open accounts.
func (g *Group) SettlementPlan() ([]settle.Transfer, error) {
	v, err := g.store.Memoize("settlement", func() (any, error) {
		balances, err := g.Balances()
		if err != nil {
			return nil, err
		}
		return settle.Plan(balances), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]settle.Transfer), nil
}
