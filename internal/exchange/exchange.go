// Package exchange is the settlement coupling between the account ledger
// and the matching engine: it routes orders to the correct Market, reserves
// funds on submission, transfers funds on trade, rebates bid price
// improvement, and refunds unfilled reservations on cancel.
package exchange

import (
	"errors"
	"math/bits"

	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/ledger"
	"heimdall/internal/market"
)

var (
	// ErrUnknownMarket is returned by SubmitOrder and CancelOrder when the
	// order's pair has no registered market. Markets are never created
	// lazily: a client submitting to an unregistered pair has made an
	// error, and masking that with lazy creation would hide it.
	ErrUnknownMarket = errors.New("exchange: unknown market")
	// ErrMarketExists is returned by AddMarket when pair is already
	// registered.
	ErrMarketExists = errors.New("exchange: market already exists")
	// ErrOrderNotFound is returned by CancelOrder when the book does not
	// contain the requested id+side+price.
	ErrOrderNotFound = errors.New("exchange: order not found")
	// ErrNotionalOverflow is returned by SubmitOrder when a bid's price ×
	// quantity exceeds the range of a 64-bit accumulator. Reservation is rejected
	// before any book or ledger mutation occurs.
	ErrNotionalOverflow = errors.New("exchange: notional overflow")
)

// Exchange owns the ledger and the registry of markets, and is the sole
// entry point external callers use. It assumes a single mutator thread, per
// the core's concurrency model: callers (internal/server) serialize calls
// into it.
type Exchange struct {
	markets map[common.Pair]*market.Market
	ledger  *ledger.Ledger
}

// New returns an Exchange with no registered markets and an empty ledger.
func New() *Exchange {
	return &Exchange{
		markets: make(map[common.Pair]*market.Market),
		ledger:  ledger.New(),
	}
}

// AddMarket registers a new, empty Market for pair.
func (e *Exchange) AddMarket(pair common.Pair) error {
	if _, ok := e.markets[pair]; ok {
		return ErrMarketExists
	}
	e.markets[pair] = market.New(pair)
	return nil
}

// Market returns the registered market for pair, for read-only callers
// (market-data, depth queries) that should not go through SubmitOrder.
func (e *Exchange) Market(pair common.Pair) (*market.Market, bool) {
	m, ok := e.markets[pair]
	return m, ok
}

// Book returns the order book for pair's market, for read-only queries.
func (e *Exchange) Book(pair common.Pair) (*book.Book, bool) {
	m, ok := e.markets[pair]
	if !ok {
		return nil, false
	}
	return m.Book(), true
}

// CreditBalance adds amount to account's balance of asset.
func (e *Exchange) CreditBalance(account common.AccountID, asset common.Asset, amount common.Quantity) {
	e.ledger.Credit(account, asset, amount)
}

// DebitBalance subtracts amount from account's balance of asset.
func (e *Exchange) DebitBalance(account common.AccountID, asset common.Asset, amount common.Quantity) error {
	return e.ledger.Debit(account, asset, amount)
}

// GetBalance returns account's balance of asset.
func (e *Exchange) GetBalance(account common.AccountID, asset common.Asset) (common.Quantity, error) {
	if !e.ledger.HasAccount(account) {
		return 0, ledger.ErrAccountUnknown
	}
	return e.ledger.Balance(account, asset), nil
}

// Ledger returns the exchange's underlying ledger, for read-only admin
// tooling (internal/pretty) that needs every account's full balance row
// rather than one (account, asset) lookup at a time.
func (e *Exchange) Ledger() *ledger.Ledger {
	return e.ledger
}

// notional computes price × quantity with a widened accumulator and rejects
// values that would not fit back into a uint64 — see SPEC_FULL.md §4.2
// "Overflow handling". A silently saturated or wrapped notional would break
// the conservation invariant, so this is a hard reservation-time rejection
// rather than a best-effort clamp.
func notional(price common.Price, qty common.Quantity) (common.Quantity, error) {
	hi, lo := bits.Mul64(uint64(price), uint64(qty))
	if hi != 0 {
		return 0, ErrNotionalOverflow
	}
	return common.Quantity(lo), nil
}

// SubmitOrder reserves the taker's obligation for order's full quantity,
// hands order to pair's matching engine, and settles every trade the engine
// produces: the ask side is credited numeraire at the trade price, the bid
// side is credited base, and — since every trade executes at the maker's
// price (never the taker's) — a bid that crossed at a better price than it
// offered is rebated the difference in numeraire.
//
// On any reservation failure the order is rejected before it ever reaches
// the matching engine: the ledger and book are left byte-identical to their
// pre-call state.
func (e *Exchange) SubmitOrder(order common.Order, pair common.Pair) ([]common.Trade, error) {
	m, ok := e.markets[pair]
	if !ok {
		return nil, ErrUnknownMarket
	}

	var debitErr error
	if order.Side == common.Bid {
		reserve, err := notional(order.Price, order.Quantity)
		if err != nil {
			return nil, err
		}
		debitErr = e.ledger.Debit(order.Account, pair.Numeraire, reserve)
	} else {
		debitErr = e.ledger.Debit(order.Account, pair.Base, order.Quantity)
	}
	if errors.Is(debitErr, ledger.ErrAccountUnknown) {
		// An account that was never credited cannot cover any reservation.
		debitErr = ledger.ErrInsufficientBalance
	}
	if debitErr != nil {
		return nil, debitErr
	}

	trades := m.ProcessOrder(order)

	for _, t := range trades {
		tradeNotional, err := notional(t.Price, t.Quantity)
		if err != nil {
			// The bid side's reservation (this order's above, or the resting
			// bid's when it was submitted) already bounded this trade's
			// notional below the overflow threshold, so this is unreachable in
			// practice; treated as a programming-error condition per
			// spec.md §7 rather than a user-visible error.
			panic(err)
		}
		e.ledger.Credit(t.AskAccount, pair.Numeraire, tradeNotional)
		e.ledger.Credit(t.BidAccount, pair.Base, t.Quantity)

		if order.Side == common.Bid && t.Price < order.Price {
			rebate, err := notional(order.Price-t.Price, t.Quantity)
			if err != nil {
				panic(err)
			}
			e.ledger.Credit(t.BidAccount, pair.Numeraire, rebate)
		}
	}

	return trades, nil
}

// CancelOrder removes a resting order and refunds its unfilled reservation
// to the owner: numeraire for a bid, base for an ask.
func (e *Exchange) CancelOrder(orderID common.OrderID, side common.Side, price common.Price, pair common.Pair) error {
	m, ok := e.markets[pair]
	if !ok {
		return ErrUnknownMarket
	}

	order := m.Cancel(orderID, side, price)
	if order == nil {
		return ErrOrderNotFound
	}

	if side == common.Bid {
		refund, err := notional(price, order.Quantity)
		if err != nil {
			panic(err)
		}
		e.ledger.Credit(order.Account, pair.Numeraire, refund)
	} else {
		e.ledger.Credit(order.Account, pair.Base, order.Quantity)
	}
	return nil
}
