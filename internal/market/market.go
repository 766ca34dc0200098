// Package market binds a single Pair to one Book and one matching Engine.
package market

import (
	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/matching"
)

// Market is the unit of mutual exclusion in a per-pair sharded deployment:
// every call into it is expected to be serialized by the caller (see
// internal/exchange and internal/server).
type Market struct {
	Pair   common.Pair
	engine *matching.Engine
}

// New creates an empty Market for pair.
func New(pair common.Pair) *Market {
	return &Market{
		Pair:   pair,
		engine: matching.New(book.New()),
	}
}

// ProcessOrder submits order to the matching engine and returns any trades
// it produced.
func (m *Market) ProcessOrder(order common.Order) []common.Trade {
	return m.engine.ProcessOrder(order)
}

// Cancel removes a resting order by id, side and price.
func (m *Market) Cancel(orderID common.OrderID, side common.Side, price common.Price) *common.Order {
	return m.engine.Cancel(orderID, side, price)
}

// Book exposes the underlying order book for read-only queries (depth
// snapshots, best bid/ask) without touching the matching engine.
func (m *Market) Book() *book.Book {
	return m.engine.Book()
}
