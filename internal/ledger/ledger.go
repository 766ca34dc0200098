// Package ledger maps (account, asset) to a non-negative integer balance.
package ledger

import (
	"errors"

	"heimdall/internal/common"
)

var (
	// ErrAccountUnknown is returned by Debit when no record exists for the
	// requested account. Balance reports 0 for such an account instead.
	ErrAccountUnknown = errors.New("ledger: account unknown")
	// ErrInsufficientBalance is returned by Debit when the account's
	// balance for the asset is less than the requested amount.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)

// Ledger is a simple balance table. It has no notion of reservations: a
// debit simply subtracts, a credit simply adds. Callers (internal/exchange)
// are responsible for debiting at the point funds should be considered
// reserved and crediting back on cancel or trade settlement.
type Ledger struct {
	balances map[common.AccountID]map[common.Asset]common.Quantity
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[common.AccountID]map[common.Asset]common.Quantity)}
}

// Credit adds amount to account's balance of asset, lazily creating the
// account record on first touch.
func (l *Ledger) Credit(account common.AccountID, asset common.Asset, amount common.Quantity) {
	row, ok := l.balances[account]
	if !ok {
		row = make(map[common.Asset]common.Quantity)
		l.balances[account] = row
	}
	row[asset] += amount
}

// Debit subtracts amount from account's balance of asset. It fails whole —
// either the full amount is subtracted or the balance is left untouched.
func (l *Ledger) Debit(account common.AccountID, asset common.Asset, amount common.Quantity) error {
	row, ok := l.balances[account]
	if !ok {
		return ErrAccountUnknown
	}
	if row[asset] < amount {
		return ErrInsufficientBalance
	}
	row[asset] -= amount
	return nil
}

// Balance returns account's balance of asset, or 0 if the (account, asset)
// pair has never been credited.
func (l *Ledger) Balance(account common.AccountID, asset common.Asset) common.Quantity {
	row, ok := l.balances[account]
	if !ok {
		return 0
	}
	return row[asset]
}

// HasAccount reports whether account has ever been credited, for callers
// that need to distinguish "unknown account" from "known account, zero
// balance" without triggering ErrAccountUnknown via Debit.
func (l *Ledger) HasAccount(account common.AccountID) bool {
	_, ok := l.balances[account]
	return ok
}

// Accounts returns every account id with at least one balance record, for
// the balance-table pretty printer (internal/pretty) and admin tooling.
// Order is unspecified; callers sort if deterministic output is required.
func (l *Ledger) Accounts() []common.AccountID {
	ids := make([]common.AccountID, 0, len(l.balances))
	for id := range l.balances {
		ids = append(ids, id)
	}
	return ids
}

// Assets returns every asset account has a balance record for (including
// zero balances left over from a full debit).
func (l *Ledger) Assets(account common.AccountID) []common.Asset {
	row := l.balances[account]
	assets := make([]common.Asset, 0, len(row))
	for a := range row {
		assets = append(assets, a)
	}
	return assets
}
