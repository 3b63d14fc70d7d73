package balance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/entity"
)

// resolveClearing redistributes every clearing account's balance to its
// share participants, following chains until only personal accounts hold
// balance. Participants that are no longer in the live account set receive
// nothing; their weight falls to the remaining participants. Chains are
// ordered so an account distributes before any clearing account it feeds; a
// cycle fails closed with ErrCyclicClearing.
func resolveClearing(out BalanceMap, accounts map[int64]*entity.Account) error {
	order, err := clearingOrder(accounts)
	if err != nil {
		return err
	}
	for _, id := range order {
		a := accounts[id]
		shares, _ := scrubShares(a.ClearingShares(), accounts)
		if shares.Empty() {
			// Nothing to distribute against; the balance stays put.
			continue
		}
		b := out[id]
		amount := b.Balance
		if amount.IsZero() {
			continue
		}
		resolution := make(map[int64]decimal.Decimal, len(shares))
		distributed := decimal.Zero
		for _, pid := range sortedKeys(shares) {
			if !shares[pid].IsPositive() {
				continue
			}
			part := shares.Share(amount, pid)
			resolution[pid] = part
			distributed = distributed.Add(part)
			pb := out[pid]
			pb.Balance = pb.Balance.Add(part)
			out[pid] = pb
		}
		b.Balance = b.Balance.Sub(distributed)
		b.ClearingResolution = resolution
		out[id] = b
	}
	return nil
}

// clearingOrder returns clearing account ids in distribution order: every
// account before the clearing accounts appearing in its shares.
func clearingOrder(accounts map[int64]*entity.Account) ([]int64, error) {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[int64]int, len(accounts))
	var postorder []int64

	var visit func(id int64) error
	visit = func(id int64) error {
		state[id] = inStack
		a := accounts[id]
		for _, pid := range sortedKeys(a.ClearingShares()) {
			p, ok := accounts[pid]
			if !ok || p.Kind != entity.AccountClearing || p.Deleted {
				continue
			}
			switch state[pid] {
			case inStack:
				return fmt.Errorf("%w: account %d reaches itself", apperr.ErrCyclicClearing, pid)
			case unvisited:
				if err := visit(pid); err != nil {
					return err
				}
			}
		}
		state[id] = done
		postorder = append(postorder, id)
		return nil
	}

	for _, id := range sortedAccountIDs(accounts) {
		a := accounts[id]
		if a.Kind != entity.AccountClearing || a.Deleted {
			continue
		}
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}

	// Reverse postorder: feeders distribute first.
	for i, j := 0, len(postorder)-1; i < j; i, j = i+1, j-1 {
		postorder[i], postorder[j] = postorder[j], postorder[i]
	}
	return postorder, nil
}

func sortedKeys(s entity.ShareMap) []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedAccountIDs(accounts map[int64]*entity.Account) []int64 {
	ids := make([]int64, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
