// Package book implements the dual price-indexed ladder at the heart of the
// matching engine: two sorted sides, each a map from price to a FIFO queue of
// resting orders at that price.
package book

import (
	"github.com/emirpasic/gods/lists/doublylinkedlist"
	"github.com/tidwall/btree"

	"heimdall/internal/common"
)

// priceLevel is the FIFO queue of resting orders at one price, on one side.
// Insertion appends at the tail; matching consumes from the head; cancel
// scans for the id. The queue is never empty while its price key exists in
// the owning btree — every removal path that empties it also deletes the
// key.
type priceLevel struct {
	price  common.Price
	orders *doublylinkedlist.List
}

func newPriceLevel(price common.Price) *priceLevel {
	return &priceLevel{price: price, orders: doublylinkedlist.New()}
}

func (l *priceLevel) empty() bool {
	return l.orders.Empty()
}

// Level is the externally-visible read-only view of a price level returned
// by iteration: a price and the resting orders at it, head first.
type Level struct {
	Price  common.Price
	Orders []*common.Order
}

// Book owns the two side ladders for a single Pair's Market. It is not
// safe for concurrent use; callers serialize access (see internal/market).
type Book struct {
	bids *btree.BTreeG[*priceLevel] // descending: best (highest) bid first
	asks *btree.BTreeG[*priceLevel] // ascending: best (lowest) ask first
}

// New returns an empty order book.
func New() *Book {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price
	})
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price
	})
	return &Book{bids: bids, asks: asks}
}

func (b *Book) ladder(side common.Side) *btree.BTreeG[*priceLevel] {
	if side == common.Bid {
		return b.bids
	}
	return b.asks
}

// Insert appends order onto the level at order.Price on order.Side, creating
// the level if it does not already exist.
func (b *Book) Insert(order *common.Order) {
	ladder := b.ladder(order.Side)
	key := &priceLevel{price: order.Price}
	level, ok := ladder.Get(key)
	if !ok {
		level = newPriceLevel(order.Price)
		ladder.Set(level)
	}
	level.orders.Add(order)
}

// Remove locates the order with orderID at the given side+price, removes it
// preserving the relative order of the remaining entries, and deletes the
// level if it becomes empty. Returns nil if no matching entry exists.
func (b *Book) Remove(orderID common.OrderID, side common.Side, price common.Price) *common.Order {
	ladder := b.ladder(side)
	level, ok := ladder.Get(&priceLevel{price: price})
	if !ok {
		return nil
	}

	it := level.orders.Iterator()
	for it.Next() {
		order := it.Value().(*common.Order)
		if order.ID != orderID {
			continue
		}
		level.orders.Remove(it.Index())
		if level.empty() {
			ladder.Delete(level)
		}
		return order
	}
	return nil
}

// UpdateQuantity rewrites the remaining quantity of orderID on side. newQty
// must be > 0 — use Remove for full consumption. Does nothing if the id is
// absent.
func (b *Book) UpdateQuantity(orderID common.OrderID, side common.Side, newQty common.Quantity) bool {
	ladder := b.ladder(side)
	found := false
	ladder.Scan(func(level *priceLevel) bool {
		it := level.orders.Iterator()
		for it.Next() {
			order := it.Value().(*common.Order)
			if order.ID == orderID {
				order.Quantity = newQty
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// BestBid returns the highest resting bid price, if any.
func (b *Book) BestBid() (common.Price, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (b *Book) BestAsk() (common.Price, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// LevelHandle lets the matching engine walk the best opposing level head
// first without re-locating it by price on every order it consumes. It is
// only valid until the next mutation of the Book that produced it.
type LevelHandle struct {
	book  *Book
	side  common.Side
	level *priceLevel
}

// BestOpposing returns a handle onto the best (top of book) level on side,
// if the side is non-empty.
func (b *Book) BestOpposing(side common.Side) (*LevelHandle, bool) {
	level, ok := b.ladder(side).Min()
	if !ok {
		return nil, false
	}
	return &LevelHandle{book: b, side: side, level: level}, true
}

// Price is the resting price of every order on this level.
func (h *LevelHandle) Price() common.Price {
	return h.level.price
}

// Head returns the earliest-arrived resting order still on this level,
// without removing it.
func (h *LevelHandle) Head() (*common.Order, bool) {
	if h.level.empty() {
		return nil, false
	}
	return h.level.orders.Values()[0].(*common.Order), true
}

// PopHead removes the earliest-arrived resting order from this level. The
// caller must call DropIfEmpty afterwards so an exhausted level's key does
// not linger in the ladder.
func (h *LevelHandle) PopHead() {
	h.level.orders.Remove(0)
}

// DropIfEmpty deletes this level's key from its ladder if matching has
// consumed every resting order on it. A no-op otherwise.
func (h *LevelHandle) DropIfEmpty() {
	if h.level.empty() {
		h.book.ladder(h.side).Delete(h.level)
	}
}

// AsksAscending returns every ask level, best (lowest) price first.
func (b *Book) AsksAscending() []Level {
	return snapshot(b.asks)
}

// BidsDescending returns every bid level, best (highest) price first.
func (b *Book) BidsDescending() []Level {
	return snapshot(b.bids)
}

func snapshot(ladder *btree.BTreeG[*priceLevel]) []Level {
	var levels []Level
	ladder.Scan(func(level *priceLevel) bool {
		orders := make([]*common.Order, 0, level.orders.Size())
		it := level.orders.Iterator()
		for it.Next() {
			orders = append(orders, it.Value().(*common.Order))
		}
		levels = append(levels, Level{Price: level.price, Orders: orders})
		return true
	})
	return levels
}
