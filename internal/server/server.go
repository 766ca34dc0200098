// Package server runs the TCP front door of the exchange: it accepts
// connections, parses internal/wire frames off them, and serializes every
// mutating call into a single session-handler goroutine so the
// single-mutator-thread model internal/exchange assumes is never violated by
// concurrent network I/O. Adapted from the teacher's internal/net/server.go
// and internal/worker.go worker-pool pattern.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"heimdall/internal/common"
	"heimdall/internal/exchange"
	"heimdall/internal/marketdata"
	"heimdall/internal/metrics"
	"heimdall/internal/wire"
)

const (
	defaultWorkers     = 10
	maxFrameSize       = 4 * 1024
	defaultReadTimeout = 5 * time.Second
)

// inbound links a parsed wire request to the connection it arrived on, so
// the session handler can write its response back to the right socket.
type inbound struct {
	conn    net.Conn
	request any
}

// Server is the TCP front door. Not safe for concurrent Run calls; a single
// Server instance owns one listener for its lifetime.
type Server struct {
	addr     string
	exchange *exchange.Exchange
	hub      *marketdata.Hub
	metrics  *metrics.Recorder

	pool    *workerPool
	inbox   chan inbound
	connsMu sync.Mutex
	conns   map[string]net.Conn
}

// New returns a Server listening on addr (host:port) that dispatches into
// ex, publishes trades to hub, and records activity on rec. hub and rec may
// be nil; both are optional.
func New(addr string, ex *exchange.Exchange, hub *marketdata.Hub, rec *metrics.Recorder) *Server {
	s := &Server{
		addr:     addr,
		exchange: ex,
		hub:      hub,
		metrics:  rec,
		inbox:    make(chan inbound, 1),
		conns:    make(map[string]net.Conn),
	}
	s.pool = newWorkerPool(defaultWorkers, s.handleConnection)
	return s
}

// Run listens on the server's address and blocks, serving connections until
// ctx is cancelled. Every mutating dispatch into the exchange happens on the
// single sessionHandler goroutine started here.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	defer listener.Close()

	s.pool.Run(t)
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("addr", s.addr).Msg("server listening")

	for {
		select {
		case <-ctx.Done():
			return t.Wait()
		default:
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return t.Wait()
			default:
				log.Error().Err(err).Msg("server: accept failed")
				continue
			}
		}

		s.trackConn(conn)
		s.pool.AddTask(conn)
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn.RemoteAddr().String()] = conn
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn.RemoteAddr().String())
}

// handleConnection reads exactly one frame off conn, parses it, and forwards
// it to the session handler. It never calls into the exchange directly —
// that is the session handler's sole responsibility.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultReadTimeout)); err != nil {
		log.Error().Err(err).Msg("server: set read deadline failed")
		s.closeConn(conn)
		return nil
	}

	buf := make([]byte, maxFrameSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("server: connection closed")
		s.closeConn(conn)
		return nil
	}

	req, err := wire.ParseRequest(buf[:n])
	if err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("server: malformed frame")
		s.closeConn(conn)
		return nil
	}

	select {
	case s.inbox <- inbound{conn: conn, request: req}:
	case <-t.Dying():
		return nil
	}

	// Re-queue the connection so its next frame gets a worker too.
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) closeConn(conn net.Conn) {
	s.untrackConn(conn)
	_ = conn.Close()
}

// sessionHandler is the only goroutine that calls into internal/exchange,
// preserving its single-mutator-thread assumption. It drains s.inbox and
// writes an ExecutionReport or ErrorReport frame back to the originating
// connection, publishing any trades to the market-data hub along the way.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case in := <-s.inbox:
			s.dispatch(in)
		}
	}
}

func (s *Server) dispatch(in inbound) {
	switch req := in.request.(type) {
	case wire.NewOrderRequest:
		s.handleNewOrder(in.conn, req)
	case wire.CancelOrderRequest:
		s.handleCancelOrder(in.conn, req)
	case wire.HeartbeatRequest:
		writeFrame(in.conn, wire.HeartbeatRequest{ClientID: req.ClientID}.Encode())
	case wire.BalanceQueryRequest:
		s.handleBalanceQuery(in.conn, req)
	}
}

func (s *Server) handleBalanceQuery(conn net.Conn, req wire.BalanceQueryRequest) {
	l := s.exchange.Ledger()
	assets := l.Assets(req.Account)
	balances := make([]wire.AssetBalance, len(assets))
	for i, a := range assets {
		balances[i] = wire.AssetBalance{Asset: a, Quantity: l.Balance(req.Account, a)}
	}

	frame, err := wire.BalanceReportMsg{ClientID: req.ClientID, Balances: balances}.Encode()
	if err != nil {
		writeFrame(conn, wire.ErrorReportMsg{ClientID: req.ClientID, Err: err.Error()}.Encode())
		return
	}
	writeFrame(conn, frame)
}

func (s *Server) handleNewOrder(conn net.Conn, req wire.NewOrderRequest) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.ObserveOrderReceived(req.Side.String())
	}

	order := common.Order{
		ID:        req.OrderID,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Account:   req.Account,
		Submitted: common.Timestamp(time.Now().UnixNano()),
	}

	trades, err := s.exchange.SubmitOrder(order, req.Pair)
	if s.metrics != nil {
		s.metrics.ObserveMatchLatency(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveOrderRejected(err.Error())
		}
		writeFrame(conn, wire.ErrorReportMsg{ClientID: req.ClientID, Err: err.Error()}.Encode())
		return
	}

	if len(trades) == 0 {
		// Accepted with nothing to match against: still acknowledge, so a
		// client that places a purely resting order learns the submission
		// succeeded rather than reading past its deadline waiting for a
		// trade report that was never coming.
		writeFrame(conn, wire.ExecutionReportMsg{
			ClientID: req.ClientID,
			Price:    order.Price,
			Quantity: order.Quantity,
		}.Encode())
	}

	var notional uint64
	for _, tr := range trades {
		notional += uint64(tr.Price) * uint64(tr.Quantity)
		writeFrame(conn, wire.ExecutionReportMsg{
			ClientID:   req.ClientID,
			AskOrderID: tr.AskOrderID,
			BidOrderID: tr.BidOrderID,
			Price:      tr.Price,
			Quantity:   tr.Quantity,
		}.Encode())
		if s.hub != nil {
			s.hub.Publish(req.Pair, tr)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveTrades(len(trades), notional)
	}
}

func (s *Server) handleCancelOrder(conn net.Conn, req wire.CancelOrderRequest) {
	err := s.exchange.CancelOrder(req.OrderID, req.Side, req.Price, req.Pair)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveOrderRejected(err.Error())
		}
		writeFrame(conn, wire.ErrorReportMsg{ClientID: req.ClientID, Err: err.Error()}.Encode())
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveOrderCancelled()
	}
	writeFrame(conn, wire.ExecutionReportMsg{ClientID: req.ClientID}.Encode())
}

func writeFrame(conn net.Conn, frame []byte) {
	if _, err := conn.Write(frame); err != nil {
		log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("server: write failed")
	}
}
