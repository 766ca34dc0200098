package wire_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/common"
	"heimdall/internal/wire"
)

func TestNewOrderRoundTrip(t *testing.T) {
	req := wire.NewOrderRequest{
		ClientID: uuid.New(),
		Account:  "ann",
		Pair:     common.Pair{Numeraire: "USD", Base: "BTC"},
		Side:     common.Bid,
		Price:    50_000,
		Quantity: 3,
		OrderID:  7,
	}
	buf, err := req.Encode()
	require.NoError(t, err)

	parsed, err := wire.ParseRequest(buf)
	require.NoError(t, err)

	got, ok := parsed.(wire.NewOrderRequest)
	require.True(t, ok)
	assert.Equal(t, req, got)
}

func TestCancelOrderRoundTrip(t *testing.T) {
	req := wire.CancelOrderRequest{
		ClientID: uuid.New(),
		Account:  "bob",
		Pair:     common.Pair{Numeraire: "USD", Base: "BTC"},
		Side:     common.Ask,
		Price:    49_000,
		OrderID:  42,
	}
	buf, err := req.Encode()
	require.NoError(t, err)

	parsed, err := wire.ParseRequest(buf)
	require.NoError(t, err)

	got, ok := parsed.(wire.CancelOrderRequest)
	require.True(t, ok)
	assert.Equal(t, req, got)
}

func TestHeartbeatRoundTrip(t *testing.T) {
	req := wire.HeartbeatRequest{ClientID: uuid.New()}
	buf := req.Encode()

	parsed, err := wire.ParseRequest(buf)
	require.NoError(t, err)

	got, ok := parsed.(wire.HeartbeatRequest)
	require.True(t, ok)
	assert.Equal(t, req, got)
}

func TestParseRequestRejectsUnknownType(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	_, err := wire.ParseRequest(buf)
	require.ErrorIs(t, err, wire.ErrInvalidMessageType)
}

func TestParseRequestRejectsShortBuffer(t *testing.T) {
	_, err := wire.ParseRequest([]byte{0x00})
	require.ErrorIs(t, err, wire.ErrMessageTooShort)
}

func TestNewOrderRejectsOversizedAsset(t *testing.T) {
	req := wire.NewOrderRequest{
		ClientID: uuid.New(),
		Account:  "ann",
		Pair:     common.Pair{Numeraire: "DOGECOIN", Base: "BTC"},
		Side:     common.Bid,
		Price:    1,
		Quantity: 1,
	}
	_, err := req.Encode()
	require.ErrorIs(t, err, wire.ErrAssetTooLong)
}

func TestNewOrderRejectsOversizedAccount(t *testing.T) {
	req := wire.NewOrderRequest{
		ClientID: uuid.New(),
		Account:  "an-account-id-that-is-far-too-long-to-fit",
		Pair:     common.Pair{Numeraire: "USD", Base: "BTC"},
		Side:     common.Bid,
		Price:    1,
		Quantity: 1,
	}
	_, err := req.Encode()
	require.ErrorIs(t, err, wire.ErrAccountTooLong)
}

func TestBalanceQueryRoundTrip(t *testing.T) {
	req := wire.BalanceQueryRequest{ClientID: uuid.New(), Account: "ann"}
	buf, err := req.Encode()
	require.NoError(t, err)

	parsed, err := wire.ParseRequest(buf)
	require.NoError(t, err)

	got, ok := parsed.(wire.BalanceQueryRequest)
	require.True(t, ok)
	assert.Equal(t, req, got)
}

func TestBalanceReportRoundTrip(t *testing.T) {
	msg := wire.BalanceReportMsg{
		ClientID: uuid.New(),
		Balances: []wire.AssetBalance{
			{Asset: "USD", Quantity: 1_000},
			{Asset: "BTC", Quantity: 3},
		},
	}
	buf, err := msg.Encode()
	require.NoError(t, err)

	got, err := wire.DecodeBalanceReportMsg(buf[wire.TypeTagLen:])
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestBalanceReportRoundTripEmpty(t *testing.T) {
	msg := wire.BalanceReportMsg{ClientID: uuid.New(), Balances: []wire.AssetBalance{}}
	buf, err := msg.Encode()
	require.NoError(t, err)
	assert.Len(t, buf, wire.BalanceReportFixedLen)

	got, err := wire.DecodeBalanceReportMsg(buf[wire.TypeTagLen:])
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestExecutionReportEncodeLength(t *testing.T) {
	r := wire.ExecutionReportMsg{
		ClientID:   uuid.New(),
		AskOrderID: 1,
		BidOrderID: 2,
		Price:      50_000,
		Quantity:   3,
	}
	buf := r.Encode()
	assert.Len(t, buf, wire.ExecutionReportBodyLen)
}

func TestErrorReportEncodeCarriesMessage(t *testing.T) {
	r := wire.ErrorReportMsg{ClientID: uuid.New(), Err: "insufficient balance"}
	buf := r.Encode()
	assert.Len(t, buf, wire.ErrorReportFixedLen+len("insufficient balance"))
}
