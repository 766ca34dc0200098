package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"heimdall/internal/common"
	"heimdall/internal/exchange"
	"heimdall/internal/server"
	"heimdall/internal/wire"
)

func startTestServer(t *testing.T) (addr string, ex *exchange.Exchange, stop func()) {
	t.Helper()

	ex = exchange.New()
	pair := common.Pair{Numeraire: "USD", Base: "BTC"}
	require.NoError(t, ex.AddMarket(pair))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = listener.Addr().String()
	require.NoError(t, listener.Close())

	srv := server.New(addr, ex, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	// Give the listener a moment to come up.
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr, ex, cancel
}

func TestNewOrderOverTCPRests(t *testing.T) {
	addr, ex, stop := startTestServer(t)
	defer stop()

	pair := common.Pair{Numeraire: "USD", Base: "BTC"}
	ex.CreditBalance("ann", "USD", 100_000)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := wire.NewOrderRequest{
		ClientID: uuid.New(),
		Account:  "ann",
		Pair:     pair,
		Side:     common.Bid,
		Price:    50_000,
		Quantity: 1,
		OrderID:  1,
	}
	frame, err := req.Encode()
	require.NoError(t, err)

	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, wire.ErrorReportFixedLen)

	b, ok := ex.Book(pair)
	require.True(t, ok)
	bids := b.BidsDescending()
	require.Len(t, bids, 1)
	require.EqualValues(t, 50_000, bids[0].Price)
}

func TestCancelOverTCPRefunds(t *testing.T) {
	addr, ex, stop := startTestServer(t)
	defer stop()

	pair := common.Pair{Numeraire: "USD", Base: "BTC"}
	ex.CreditBalance("ann", "USD", 100_000)

	trades, err := ex.SubmitOrder(common.Order{ID: 1, Side: common.Bid, Price: 50_000, Quantity: 1, Account: "ann"}, pair)
	require.NoError(t, err)
	require.Empty(t, trades)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := wire.CancelOrderRequest{
		ClientID: uuid.New(),
		Account:  "ann",
		Pair:     pair,
		Side:     common.Bid,
		Price:    50_000,
		OrderID:  1,
	}
	frame, err := req.Encode()
	require.NoError(t, err)

	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	_, err = conn.Read(buf)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		balance, _ := ex.GetBalance("ann", "USD")
		return balance == 100_000
	}, time.Second, 10*time.Millisecond)
}

func TestBalanceQueryOverTCPReportsLedger(t *testing.T) {
	addr, ex, stop := startTestServer(t)
	defer stop()

	ex.CreditBalance("ann", "USD", 100_000)
	ex.CreditBalance("ann", "BTC", 2)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := wire.BalanceQueryRequest{ClientID: uuid.New(), Account: "ann"}
	frame, err := req.Encode()
	require.NoError(t, err)

	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	report, err := wire.DecodeBalanceReportMsg(buf[wire.TypeTagLen:n])
	require.NoError(t, err)
	require.Len(t, report.Balances, 2)

	got := make(map[common.Asset]common.Quantity)
	for _, entry := range report.Balances {
		got[entry.Asset] = entry.Quantity
	}
	require.EqualValues(t, 100_000, got["USD"])
	require.EqualValues(t, 2, got["BTC"])
}
