package common

import "fmt"

// Order is a single resting or incoming limit order. Quantity is always the
// *remaining* quantity, never the originally submitted amount.
type Order struct {
	ID        OrderID
	Price     Price
	Quantity  Quantity
	Side      Side
	Account   AccountID
	Submitted Timestamp
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d side=%s price=%d qty=%d account=%s ts=%d}",
		o.ID, o.Side, o.Price, o.Quantity, o.Account, o.Submitted,
	)
}
