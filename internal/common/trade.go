package common

import "fmt"

// Trade is a single discrete match between a resting (maker) order and an
// incoming (taker) order. Trades are value objects: once emitted they are
// never mutated.
type Trade struct {
	AskOrderID OrderID
	BidOrderID OrderID
	AskAccount AccountID
	BidAccount AccountID
	Price      Price
	Quantity   Quantity
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{ask=%d bid=%d price=%d qty=%d askAcct=%s bidAcct=%s}",
		t.AskOrderID, t.BidOrderID, t.Price, t.Quantity, t.AskAccount, t.BidAccount,
	)
}
