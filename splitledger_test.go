package splitledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger"
	"github.com/splitledger/splitledger/pkg/entity"
)

// groupServer serves a fixed two-account group and accepts account and
// transaction creation, assigning ids from 100.
func groupServer(t *testing.T) *httptest.Server {
	t.Helper()
	nextID := int64(100)
	mux := http.NewServeMux()
	mux.HandleFunc("/groups/7", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(&entity.Group{ID: 7, Name: "flat", CurrencyIdentifier: "EUR"})
	})
	mux.HandleFunc("/groups/7/members", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]*entity.GroupMember{
			{GroupID: 7, UserID: 1, Username: "anna", IsOwner: true, CanWrite: true},
		})
	})
	mux.HandleFunc("/groups/7/accounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]*entity.Account{
				{ID: 1, GroupID: 7, Kind: entity.AccountPersonal, Name: "anna"},
				{ID: 2, GroupID: 7, Kind: entity.AccountPersonal, Name: "bob"},
			})
		case http.MethodPost:
			var a entity.Account
			require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
			a.ID = nextID
			nextID++
			a.WIP = false
			_ = json.NewEncoder(w).Encode(&a)
		}
	})
	mux.HandleFunc("/groups/7/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]entity.TransactionRecord{})
		case http.MethodPost:
			var rec entity.TransactionRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
			rec.Transaction.ID = nextID
			nextID++
			rec.Transaction.WIP = false
			_ = json.NewEncoder(w).Encode(rec)
		}
	})
	return httptest.NewServer(mux)
}

func TestEndToEndPurchaseAndBalances(t *testing.T) {
	srv := groupServer(t)
	defer srv.Close()

	c := splitledger.New(srv.URL, "", "tok")
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer func() { _ = c.Close(ctx) }()

	g, err := c.Group(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, g.Pull(ctx))
	require.Len(t, g.Accounts(), 2)
	info, ok := g.Info()
	require.True(t, ok)
	assert.Equal(t, "flat", info.Name)
	require.Len(t, g.Members(), 1)

	tx := g.NewTransaction(entity.TransactionPurchase)
	name := "groceries"
	value := decimal.NewFromInt(30)
	one := decimal.NewFromInt(1)
	require.NoError(t, g.UpdateTransaction(tx.ID, entity.TransactionPatch{
		Name:           &name,
		Value:          &value,
		CreditorShares: entity.ShareMap{1: one},
		DebitorShares:  entity.ShareMap{1: one, 2: one},
	}))
	require.NoError(t, g.SaveTransaction(ctx, tx.ID))

	// The draft id is retired for the server-assigned one.
	_, ok = g.Transaction(tx.ID)
	assert.False(t, ok)
	require.Len(t, g.Transactions(), 1)

	balances, err := g.Balances()
	require.NoError(t, err)
	assert.True(t, balances[1].Balance.Equal(decimal.NewFromInt(15)), "got %s", balances[1].Balance)
	assert.True(t, balances[2].Balance.Equal(decimal.NewFromInt(-15)), "got %s", balances[2].Balance)

	plan, err := g.SettlementPlan()
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(2), plan[0].From)
	assert.Equal(t, int64(1), plan[0].To)
	assert.True(t, plan[0].Amount.Equal(decimal.NewFromInt(15)))
}

func TestPersistenceAcrossClients(t *testing.T) {
	srv := groupServer(t)
	defer srv.Close()
	dir := t.TempDir()
	ctx := context.Background()

	c1 := splitledger.New(srv.URL, "", "tok", splitledger.WithPersistence(dir))
	g1, err := c1.Group(ctx, 7)
	require.NoError(t, err)
	draft := g1.NewAccount(entity.AccountPersonal)
	name := "carol"
	require.NoError(t, g1.UpdateAccount(draft.ID, entity.AccountPatch{Name: &name}))
	require.NoError(t, c1.Close(ctx))

	c2 := splitledger.New(srv.URL, "", "tok", splitledger.WithPersistence(dir))
	g2, err := c2.Group(ctx, 7)
	require.NoError(t, err)
	defer func() { _ = c2.Close(ctx) }()

	got, ok := g2.Account(draft.ID)
	require.True(t, ok, "draft must survive the restart")
	assert.Equal(t, "carol", got.Name)
	assert.True(t, got.WIP)
}
