// Package matching implements the marketable-order algorithm: price-time
// priority, trade generation and resting of any unfilled residual.
package matching

import (
	"heimdall/internal/book"
	"heimdall/internal/common"
)

// Engine consumes incoming orders against one side of a Book, producing
// Trades, and rests whatever quantity remains unfilled on the other side.
type Engine struct {
	book *book.Book
}

// New wraps book in a matching Engine.
func New(b *book.Book) *Engine {
	return &Engine{book: b}
}

// Book returns the underlying order book, for callers that need read access
// (e.g. best-price queries, level snapshots) without routing through the
// matching engine.
func (e *Engine) Book() *book.Book {
	return e.book
}

// opposite is the side an incoming order of side crosses against.
func opposite(side common.Side) common.Side {
	if side == common.Bid {
		return common.Ask
	}
	return common.Bid
}

// crosses reports whether a resting level at restingPrice is marketable
// against an incoming order of side at price limitPrice.
func crosses(side common.Side, limitPrice, restingPrice common.Price) bool {
	if side == common.Bid {
		return restingPrice <= limitPrice
	}
	return restingPrice >= limitPrice
}

// ProcessOrder consumes marketable quantity from order against the opposing
// side of the book, then rests any remaining quantity on order's own side.
// Trades are returned in the order they were generated: price priority
// across levels, then time priority within a level.
//
// Both reference defects are fixed here relative to a naive port: the
// residual is reinserted whenever quantity remains after matching (not only
// when zero trades occurred), and the opposing side's *best* level is always
// selected, on both the bid and the ask path.
func (e *Engine) ProcessOrder(order common.Order) []common.Trade {
	var trades []common.Trade
	remaining := order.Quantity
	side := order.Side

	for remaining > 0 {
		handle, ok := e.book.BestOpposing(opposite(side))
		if !ok {
			break
		}
		restingPrice := handle.Price()
		if !crosses(side, order.Price, restingPrice) {
			break
		}

		for remaining > 0 {
			resting, ok := handle.Head()
			if !ok {
				break
			}

			matched := remaining
			if resting.Quantity < matched {
				matched = resting.Quantity
			}

			trades = append(trades, makeTrade(side, order.ID, order.Account, resting, restingPrice, matched))

			remaining -= matched
			resting.Quantity -= matched
			if resting.Quantity == 0 {
				handle.PopHead()
			}
		}
		handle.DropIfEmpty()
	}

	if remaining > 0 {
		residual := order
		residual.Quantity = remaining
		e.book.Insert(&residual)
	}

	return trades
}

// makeTrade assembles a Trade with the maker (resting) price, per the "maker
// price wins" priority rule — the trade never executes at the taker's price.
func makeTrade(takerSide common.Side, takerID common.OrderID, takerAccount common.AccountID, maker *common.Order, price common.Price, qty common.Quantity) common.Trade {
	if takerSide == common.Bid {
		return common.Trade{
			AskOrderID: maker.ID,
			BidOrderID: takerID,
			AskAccount: maker.Account,
			BidAccount: takerAccount,
			Price:      price,
			Quantity:   qty,
		}
	}
	return common.Trade{
		AskOrderID: takerID,
		BidOrderID: maker.ID,
		AskAccount: takerAccount,
		BidAccount: maker.Account,
		Price:      price,
		Quantity:   qty,
	}
}

// Cancel removes the resting order identified by orderID/side/price. Returns
// nil if no such order exists.
func (e *Engine) Cancel(orderID common.OrderID, side common.Side, price common.Price) *common.Order {
	return e.book.Remove(orderID, side, price)
}
