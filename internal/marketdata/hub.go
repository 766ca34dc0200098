// Package marketdata republishes executed trades to websocket subscribers.
// Nothing in the retrieved pack's teacher repo does this (fenrir speaks raw
// TCP only), so the transport is grounded on gorilla/websocket as used
// elsewhere in the pack (VictorVVedtion-perp-dex's go.mod), adapted into the
// teacher's zerolog-structured logging idiom.
package marketdata

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"heimdall/internal/common"
)

// subscriberSendBuffer bounds how many pending ticks a slow subscriber can
// queue before Hub drops that subscriber. A broadcaster must never be
// able to apply backpressure to the exchange's single mutator thread, so
// publishing is always non-blocking.
const subscriberSendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// tick is the JSON shape pushed to subscribers for one executed trade.
type tick struct {
	Pair       string `json:"pair"`
	AskOrderID uint64 `json:"ask_order_id"`
	BidOrderID uint64 `json:"bid_order_id"`
	Price      uint64 `json:"price"`
	Quantity   uint64 `json:"quantity"`
}

type subscriber struct {
	pair common.Pair
	send chan tick
	conn *websocket.Conn
}

// Hub fans out trades to websocket subscribers, with a read and a write
// goroutine per subscriber connection and a mutex guarding the subscriber
// registry. Safe for concurrent use by the exchange's mutator
// thread calling Publish and arbitrary goroutines calling ServeHTTP.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the connection
// as a subscriber to the Pair named in the "pair" query parameter
// ("numeraire-base", e.g. "USD-BTC"). The connection is unregistered when it
// closes or its send buffer overflows.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pair, ok := parsePairParam(r.URL.Query().Get("pair"))
	if !ok {
		http.Error(w, "missing or malformed pair query parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("marketdata: websocket upgrade failed")
		return
	}

	sub := &subscriber{pair: pair, send: make(chan tick, subscriberSendBuffer), conn: conn}
	h.register(sub)
	defer h.unregister(sub)

	go h.readPump(sub)
	h.writePump(sub)
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s] = struct{}{}
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.send)
	}
	_ = s.conn.Close()
}

// readPump discards inbound frames but must run so the connection notices a
// client-initiated close; gorilla/websocket requires a reader goroutine per
// connection.
func (h *Hub) readPump(s *subscriber) {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	for t := range s.send {
		if err := s.conn.WriteJSON(t); err != nil {
			return
		}
	}
}

// Publish fans trade out to every subscriber currently registered for pair.
// Never blocks: a subscriber whose send buffer is full is dropped (not the
// tick) rather than stalling the caller, which is the exchange's single
// mutator thread.
func (h *Hub) Publish(pair common.Pair, trade common.Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := tick{
		Pair:       pairKey(pair),
		AskOrderID: uint64(trade.AskOrderID),
		BidOrderID: uint64(trade.BidOrderID),
		Price:      uint64(trade.Price),
		Quantity:   uint64(trade.Quantity),
	}

	for s := range h.subscribers {
		if s.pair != pair {
			continue
		}
		select {
		case s.send <- t:
		default:
			log.Warn().Str("pair", pair.String()).Msg("marketdata: dropping slow subscriber")
			// Closing send ends writePump, whose deferred unregister closes
			// the connection; the map entry is gone, so send is not closed twice.
			delete(h.subscribers, s)
			close(s.send)
		}
	}
}

// MarshalTick is exposed for callers (tests, non-websocket fallbacks) that
// want the wire JSON without a live connection.
func MarshalTick(pair common.Pair, trade common.Trade) ([]byte, error) {
	return json.Marshal(tick{
		Pair:       pairKey(pair),
		AskOrderID: uint64(trade.AskOrderID),
		BidOrderID: uint64(trade.BidOrderID),
		Price:      uint64(trade.Price),
		Quantity:   uint64(trade.Quantity),
	})
}

// pairKey formats pair as "NUMERAIRE-BASE" for the wire — distinct from
// common.Pair.String()'s "BASE/NUMERAIRE" display form — so it round-trips
// through parsePairParam without ambiguity.
func pairKey(pair common.Pair) string {
	return string(pair.Numeraire) + "-" + string(pair.Base)
}

func parsePairParam(raw string) (common.Pair, bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '-' {
			return common.Pair{Numeraire: common.Asset(raw[:i]), Base: common.Asset(raw[i+1:])}, i > 0 && i < len(raw)-1
		}
	}
	return common.Pair{}, false
}
