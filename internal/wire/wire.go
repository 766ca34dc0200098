// Package wire implements the fixed-header binary protocol spoken between
// cmd/client and internal/server: a 2-byte big-endian type tag followed by a
// request or response body. Request bodies and execution reports are
// fixed-width; error and balance reports end in a length- or count-prefixed
// variable part. Framing is adapted from the
// teacher's internal/net/messages.go, re-targeted at the integer-only order
// book domain model instead of floating-point prices and string tickers.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"heimdall/internal/common"
)

var (
	// ErrInvalidMessageType is returned when a request's type tag does not
	// match any known MessageType.
	ErrInvalidMessageType = errors.New("wire: invalid message type")
	// ErrMessageTooShort is returned when a buffer is shorter than the
	// fixed-width body its type tag implies.
	ErrMessageTooShort = errors.New("wire: message too short")
	// ErrAssetTooLong is returned when a Pair's Numeraire or Base symbol does
	// not fit in the fixed 4-byte wire field (e.g. "USD", "BTC", but not
	// anything longer).
	ErrAssetTooLong = errors.New("wire: asset symbol exceeds 4 bytes")
	// ErrAccountTooLong is returned when an AccountID does not fit in the
	// fixed 16-byte wire field.
	ErrAccountTooLong = errors.New("wire: account id exceeds 16 bytes")
)

// MessageType tags a request frame.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	BalanceQuery
)

// ReportType tags a response frame.
type ReportType uint16

const (
	ExecutionReport ReportType = iota
	ErrorReport
	BalanceReport
)

// Field widths, in bytes.
const (
	TypeTagLen    = 2
	assetFieldLen = 4
	// accountFieldLen bounds AccountID on the wire. This is a demonstration
	// protocol limit, not a domain one — common.AccountID is an unbounded
	// string.
	accountFieldLen = 16

	// NewOrderBodyLen: Side(1) + Price(8) + Quantity(8) + OrderID(8) +
	// Numeraire(4) + Base(4) + AccountID(16) + ClientID(16).
	NewOrderBodyLen = 1 + 8 + 8 + 8 + assetFieldLen + assetFieldLen + accountFieldLen + 16
	// CancelOrderBodyLen: Side(1) + Price(8) + OrderID(8) + Numeraire(4) +
	// Base(4) + AccountID(16) + ClientID(16).
	CancelOrderBodyLen = 1 + 8 + 8 + assetFieldLen + assetFieldLen + accountFieldLen + 16
	// HeartbeatBodyLen carries only the client correlation id.
	HeartbeatBodyLen = 16

	// ExecutionReportBodyLen: ReportType(2) + ClientID(16) + AskOrderID(8) +
	// BidOrderID(8) + Price(8) + Quantity(8).
	ExecutionReportBodyLen = 2 + 16 + 8 + 8 + 8 + 8
	// ErrorReportFixedLen is ExecutionReportBodyLen's header sans the trade
	// fields, plus a uint16 length prefix for the trailing error string.
	ErrorReportFixedLen = 2 + 16 + 2

	// BalanceQueryBodyLen: AccountID(16) + ClientID(16).
	BalanceQueryBodyLen = accountFieldLen + 16
	// balanceEntryLen: Asset(4) + Quantity(8), one per asset the queried
	// account holds a record for.
	balanceEntryLen = assetFieldLen + 8
	// BalanceReportFixedLen is the header before the repeated balance
	// entries: ReportType(2) + ClientID(16) + entry count(2).
	BalanceReportFixedLen = 2 + 16 + 2
)

// NewOrderRequest is a client's request to submit a resting or marketable
// order. OrderID is caller-chosen, per spec.md §4.1's baseline that id
// uniqueness is caller-enforced (internal/book.Insert never mints or checks
// ids itself) — this is also what lets a client cancel an order it just
// placed without first needing the server to echo an id back to it.
// ClientID is a separate, purely asynchronous correlation id the caller
// mints fresh per request — never reused as OrderID, and never the account
// — so a client can match a report back to the request that produced it.
// Account identifies the ledger account the order settles against and is
// stable across requests from the same client.
type NewOrderRequest struct {
	ClientID uuid.UUID
	Account  common.AccountID
	Pair     common.Pair
	Side     common.Side
	Price    common.Price
	Quantity common.Quantity
	OrderID  common.OrderID
}

// Encode serializes r as a NewOrder frame, including its 2-byte type tag.
func (r NewOrderRequest) Encode() ([]byte, error) {
	num, err := packAsset(r.Pair.Numeraire)
	if err != nil {
		return nil, err
	}
	base, err := packAsset(r.Pair.Base)
	if err != nil {
		return nil, err
	}
	account, err := packAccount(r.Account)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, TypeTagLen+NewOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[3:11], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[11:19], uint64(r.Quantity))
	binary.BigEndian.PutUint64(buf[19:27], uint64(r.OrderID))
	copy(buf[27:31], num)
	copy(buf[31:35], base)
	copy(buf[35:51], account)
	copy(buf[51:67], r.ClientID[:])
	return buf, nil
}

// DecodeNewOrderRequest parses the body of a NewOrder frame (type tag
// already consumed by ParseRequest).
func DecodeNewOrderRequest(body []byte) (NewOrderRequest, error) {
	if len(body) < NewOrderBodyLen {
		return NewOrderRequest{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(body[49:65])
	if err != nil {
		return NewOrderRequest{}, err
	}
	return NewOrderRequest{
		Side:     common.Side(body[0]),
		Price:    common.Price(binary.BigEndian.Uint64(body[1:9])),
		Quantity: common.Quantity(binary.BigEndian.Uint64(body[9:17])),
		OrderID:  common.OrderID(binary.BigEndian.Uint64(body[17:25])),
		Pair: common.Pair{
			Numeraire: unpackAsset(body[25:29]),
			Base:      unpackAsset(body[29:33]),
		},
		Account:  unpackAccount(body[33:49]),
		ClientID: id,
	}, nil
}

// CancelOrderRequest asks the server to cancel a resting order identified by
// its id, side, and price — the same triple internal/book.Remove indexes on.
type CancelOrderRequest struct {
	ClientID uuid.UUID
	Account  common.AccountID
	Pair     common.Pair
	Side     common.Side
	Price    common.Price
	OrderID  common.OrderID
}

// Encode serializes r as a CancelOrder frame, including its type tag.
func (r CancelOrderRequest) Encode() ([]byte, error) {
	num, err := packAsset(r.Pair.Numeraire)
	if err != nil {
		return nil, err
	}
	base, err := packAsset(r.Pair.Base)
	if err != nil {
		return nil, err
	}
	account, err := packAccount(r.Account)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, TypeTagLen+CancelOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	buf[2] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[3:11], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[11:19], uint64(r.OrderID))
	copy(buf[19:23], num)
	copy(buf[23:27], base)
	copy(buf[27:43], account)
	copy(buf[43:59], r.ClientID[:])
	return buf, nil
}

// DecodeCancelOrderRequest parses the body of a CancelOrder frame.
func DecodeCancelOrderRequest(body []byte) (CancelOrderRequest, error) {
	if len(body) < CancelOrderBodyLen {
		return CancelOrderRequest{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(body[41:57])
	if err != nil {
		return CancelOrderRequest{}, err
	}
	return CancelOrderRequest{
		Side:    common.Side(body[0]),
		Price:   common.Price(binary.BigEndian.Uint64(body[1:9])),
		OrderID: common.OrderID(binary.BigEndian.Uint64(body[9:17])),
		Pair: common.Pair{
			Numeraire: unpackAsset(body[17:21]),
			Base:      unpackAsset(body[21:25]),
		},
		Account:  unpackAccount(body[25:41]),
		ClientID: id,
	}, nil
}

// BalanceQueryRequest asks the server to report every asset balance held by
// Account. It carries no Pair: balances are account-wide, not per-market.
type BalanceQueryRequest struct {
	ClientID uuid.UUID
	Account  common.AccountID
}

// Encode serializes r as a BalanceQuery frame, including its type tag.
func (r BalanceQueryRequest) Encode() ([]byte, error) {
	account, err := packAccount(r.Account)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, TypeTagLen+BalanceQueryBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(BalanceQuery))
	copy(buf[2:18], account)
	copy(buf[18:34], r.ClientID[:])
	return buf, nil
}

// DecodeBalanceQueryRequest parses the body of a BalanceQuery frame.
func DecodeBalanceQueryRequest(body []byte) (BalanceQueryRequest, error) {
	if len(body) < BalanceQueryBodyLen {
		return BalanceQueryRequest{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(body[16:32])
	if err != nil {
		return BalanceQueryRequest{}, err
	}
	return BalanceQueryRequest{
		Account:  unpackAccount(body[0:16]),
		ClientID: id,
	}, nil
}

// HeartbeatRequest keeps a connection alive and round-trips ClientID so a
// client can measure round-trip latency.
type HeartbeatRequest struct {
	ClientID uuid.UUID
}

// Encode serializes r as a Heartbeat frame, including its type tag.
func (r HeartbeatRequest) Encode() []byte {
	buf := make([]byte, TypeTagLen+HeartbeatBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(Heartbeat))
	copy(buf[2:18], r.ClientID[:])
	return buf
}

// DecodeHeartbeatRequest parses the body of a Heartbeat frame.
func DecodeHeartbeatRequest(body []byte) (HeartbeatRequest, error) {
	if len(body) < HeartbeatBodyLen {
		return HeartbeatRequest{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(body[0:16])
	if err != nil {
		return HeartbeatRequest{}, err
	}
	return HeartbeatRequest{ClientID: id}, nil
}

// ParseRequest reads the 2-byte type tag off msg and dispatches to the
// matching decoder, returning one of NewOrderRequest, CancelOrderRequest,
// HeartbeatRequest, or BalanceQueryRequest as an untyped any.
func ParseRequest(msg []byte) (any, error) {
	if len(msg) < TypeTagLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[TypeTagLen:]
	switch typeOf {
	case NewOrder:
		return DecodeNewOrderRequest(body)
	case CancelOrder:
		return DecodeCancelOrderRequest(body)
	case Heartbeat:
		return DecodeHeartbeatRequest(body)
	case BalanceQuery:
		return DecodeBalanceQueryRequest(body)
	default:
		return nil, ErrInvalidMessageType
	}
}

// ExecutionReportMsg reports one trade back to a client, addressed by the
// ClientID that was attached to the triggering request.
type ExecutionReportMsg struct {
	ClientID   uuid.UUID
	AskOrderID common.OrderID
	BidOrderID common.OrderID
	Price      common.Price
	Quantity   common.Quantity
}

// Encode serializes r as an ExecutionReport frame.
func (r ExecutionReportMsg) Encode() []byte {
	buf := make([]byte, ExecutionReportBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ExecutionReport))
	copy(buf[2:18], r.ClientID[:])
	binary.BigEndian.PutUint64(buf[18:26], uint64(r.AskOrderID))
	binary.BigEndian.PutUint64(buf[26:34], uint64(r.BidOrderID))
	binary.BigEndian.PutUint64(buf[34:42], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[42:50], uint64(r.Quantity))
	return buf
}

// ErrorReportMsg reports a rejection back to a client, carrying the
// triggering error's message.
type ErrorReportMsg struct {
	ClientID uuid.UUID
	Err      string
}

// Encode serializes r as an ErrorReport frame.
func (r ErrorReportMsg) Encode() []byte {
	buf := make([]byte, ErrorReportFixedLen+len(r.Err))
	binary.BigEndian.PutUint16(buf[0:2], uint16(ErrorReport))
	copy(buf[2:18], r.ClientID[:])
	binary.BigEndian.PutUint16(buf[18:20], uint16(len(r.Err)))
	copy(buf[20:], r.Err)
	return buf
}

// AssetBalance is one (asset, quantity) pair inside a BalanceReportMsg.
type AssetBalance struct {
	Asset    common.Asset
	Quantity common.Quantity
}

// BalanceReportMsg answers a BalanceQueryRequest with every asset balance
// the queried account holds a record for. An account with no records at all
// reports an empty Balances slice rather than an error: "never funded" and
// "funded then fully debited down to zero" are both legitimate states.
type BalanceReportMsg struct {
	ClientID uuid.UUID
	Balances []AssetBalance
}

// Encode serializes r as a BalanceReport frame.
func (r BalanceReportMsg) Encode() ([]byte, error) {
	buf := make([]byte, BalanceReportFixedLen+len(r.Balances)*balanceEntryLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(BalanceReport))
	copy(buf[2:18], r.ClientID[:])
	binary.BigEndian.PutUint16(buf[18:20], uint16(len(r.Balances)))

	off := BalanceReportFixedLen
	for _, entry := range r.Balances {
		asset, err := packAsset(entry.Asset)
		if err != nil {
			return nil, err
		}
		copy(buf[off:off+assetFieldLen], asset)
		binary.BigEndian.PutUint64(buf[off+assetFieldLen:off+balanceEntryLen], uint64(entry.Quantity))
		off += balanceEntryLen
	}
	return buf, nil
}

// DecodeBalanceReportMsg parses the body of a BalanceReport frame (type tag
// already consumed).
func DecodeBalanceReportMsg(body []byte) (BalanceReportMsg, error) {
	const fixedAfterTag = BalanceReportFixedLen - TypeTagLen
	if len(body) < fixedAfterTag {
		return BalanceReportMsg{}, ErrMessageTooShort
	}
	id, err := uuid.FromBytes(body[0:16])
	if err != nil {
		return BalanceReportMsg{}, err
	}
	count := int(binary.BigEndian.Uint16(body[16:18]))

	balances := make([]AssetBalance, 0, count)
	off := fixedAfterTag
	for i := 0; i < count; i++ {
		if off+balanceEntryLen > len(body) {
			return BalanceReportMsg{}, ErrMessageTooShort
		}
		balances = append(balances, AssetBalance{
			Asset:    unpackAsset(body[off : off+assetFieldLen]),
			Quantity: common.Quantity(binary.BigEndian.Uint64(body[off+assetFieldLen : off+balanceEntryLen])),
		})
		off += balanceEntryLen
	}
	return BalanceReportMsg{ClientID: id, Balances: balances}, nil
}

func packAsset(a common.Asset) ([]byte, error) {
	if len(a) > assetFieldLen {
		return nil, ErrAssetTooLong
	}
	buf := make([]byte, assetFieldLen)
	copy(buf, a)
	return buf, nil
}

func unpackAsset(b []byte) common.Asset {
	return common.Asset(trimTrailingZeros(b))
}

func packAccount(a common.AccountID) ([]byte, error) {
	if len(a) > accountFieldLen {
		return nil, ErrAccountTooLong
	}
	buf := make([]byte, accountFieldLen)
	copy(buf, a)
	return buf, nil
}

func unpackAccount(b []byte) common.AccountID {
	return common.AccountID(trimTrailingZeros(b))
}

func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
