// Command client is the heimdall exchange CLI: place, cancel, balance, and
// loadgen subcommands built on cobra, replacing the teacher's
// flag-parsed cmd/client/client.go with the same place/cancel/log
// surface re-targeted at the integer-only wire protocol.
package main

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"heimdall/internal/common"
	"heimdall/internal/config"
	"heimdall/internal/pretty"
	"heimdall/internal/wire"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.ClientConfig{ServerAddr: "127.0.0.1:9001"}

	root := &cobra.Command{
		Use:   "heimdall-client",
		Short: "Talk to a heimdall exchange over its TCP wire protocol",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			serverAddr, account := cfg.ServerAddr, cfg.Account
			config.ParseClientEnv(&cfg)
			if cmd.Flags().Changed("server") {
				cfg.ServerAddr = serverAddr
			}
			if cmd.Flags().Changed("account") {
				cfg.Account = account
			}
		},
	}
	root.PersistentFlags().StringVar(&cfg.ServerAddr, "server", cfg.ServerAddr, "exchange TCP address")
	root.PersistentFlags().StringVar(&cfg.Account, "account", "", "account id to trade as (required)")

	root.AddCommand(newPlaceCmd(&cfg))
	root.AddCommand(newCancelCmd(&cfg))
	root.AddCommand(newBalanceCmd(&cfg))
	root.AddCommand(newLoadgenCmd(&cfg))
	return root
}

func requireAccount(cfg *config.ClientConfig) error {
	if cfg.Account == "" {
		return fmt.Errorf("--account is required")
	}
	return nil
}

func dial(cfg *config.ClientConfig) (net.Conn, error) {
	return net.DialTimeout("tcp", cfg.ServerAddr, 5*time.Second)
}

func readReport(conn net.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return err
	}
	if n < 2 {
		return fmt.Errorf("short report frame")
	}
	reportType := wire.ReportType(binary.BigEndian.Uint16(buf[0:2]))
	if reportType == wire.ErrorReport {
		errLen := binary.BigEndian.Uint16(buf[18:20])
		fmt.Printf("server rejected order: %s\n", buf[20:20+errLen])
		return nil
	}
	askOrderID := binary.BigEndian.Uint64(buf[18:26])
	bidOrderID := binary.BigEndian.Uint64(buf[26:34])
	price := binary.BigEndian.Uint64(buf[34:42])
	qty := binary.BigEndian.Uint64(buf[42:50])
	fmt.Printf("execution: ask=%d bid=%d price=%d qty=%d\n", askOrderID, bidOrderID, price, qty)
	return nil
}

func newPlaceCmd(cfg *config.ClientConfig) *cobra.Command {
	var numeraire, base, sideStr string
	var price, qty, orderID uint64

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Submit a new order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(cfg); err != nil {
				return err
			}
			if orderID == 0 {
				return fmt.Errorf("--order-id is required and must be nonzero")
			}
			side := common.Bid
			if sideStr == "sell" || sideStr == "ask" {
				side = common.Ask
			}

			req := wire.NewOrderRequest{
				ClientID: uuid.New(),
				Account:  common.AccountID(cfg.Account),
				Pair:     common.Pair{Numeraire: common.Asset(numeraire), Base: common.Asset(base)},
				Side:     side,
				Price:    common.Price(price),
				Quantity: common.Quantity(qty),
				OrderID:  common.OrderID(orderID),
			}
			frame, err := req.Encode()
			if err != nil {
				return err
			}

			conn, err := dial(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if _, err := conn.Write(frame); err != nil {
				return err
			}
			return readReport(conn)
		},
	}
	cmd.Flags().StringVar(&numeraire, "numeraire", "USD", "pair numeraire asset")
	cmd.Flags().StringVar(&base, "base", "BTC", "pair base asset")
	cmd.Flags().StringVar(&sideStr, "side", "buy", "order side: buy|sell")
	cmd.Flags().Uint64Var(&price, "price", 0, "limit price")
	cmd.Flags().Uint64Var(&qty, "qty", 0, "quantity")
	cmd.Flags().Uint64Var(&orderID, "order-id", 0, "caller-chosen order id, used later to cancel this order")
	return cmd
}

func newCancelCmd(cfg *config.ClientConfig) *cobra.Command {
	var numeraire, base, sideStr string
	var price, orderID uint64

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a resting order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(cfg); err != nil {
				return err
			}
			side := common.Bid
			if sideStr == "sell" || sideStr == "ask" {
				side = common.Ask
			}

			req := wire.CancelOrderRequest{
				ClientID: uuid.New(),
				Account:  common.AccountID(cfg.Account),
				Pair:     common.Pair{Numeraire: common.Asset(numeraire), Base: common.Asset(base)},
				Side:     side,
				Price:    common.Price(price),
				OrderID:  common.OrderID(orderID),
			}
			frame, err := req.Encode()
			if err != nil {
				return err
			}

			conn, err := dial(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if _, err := conn.Write(frame); err != nil {
				return err
			}
			return readReport(conn)
		},
	}
	cmd.Flags().StringVar(&numeraire, "numeraire", "USD", "pair numeraire asset")
	cmd.Flags().StringVar(&base, "base", "BTC", "pair base asset")
	cmd.Flags().StringVar(&sideStr, "side", "buy", "order side: buy|sell")
	cmd.Flags().Uint64Var(&price, "price", 0, "resting order's price")
	cmd.Flags().Uint64Var(&orderID, "order-id", 0, "order id to cancel")
	return cmd
}

func newBalanceCmd(cfg *config.ClientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Query every asset balance held by --account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(cfg); err != nil {
				return err
			}
			conn, err := dial(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			req := wire.BalanceQueryRequest{ClientID: uuid.New(), Account: common.AccountID(cfg.Account)}
			frame, err := req.Encode()
			if err != nil {
				return err
			}
			if _, err := conn.Write(frame); err != nil {
				return err
			}

			if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return err
			}
			buf := make([]byte, 4096)
			n, err := conn.Read(buf)
			if err != nil {
				return err
			}
			if n < 2 {
				return fmt.Errorf("short report frame")
			}
			reportType := wire.ReportType(binary.BigEndian.Uint16(buf[0:2]))
			if reportType == wire.ErrorReport {
				errLen := binary.BigEndian.Uint16(buf[18:20])
				fmt.Printf("server rejected balance query: %s\n", buf[20:20+errLen])
				return nil
			}

			report, err := wire.DecodeBalanceReportMsg(buf[2:n])
			if err != nil {
				return err
			}
			assets := make([]string, len(report.Balances))
			quantities := make([]uint64, len(report.Balances))
			for i, entry := range report.Balances {
				assets[i] = string(entry.Asset)
				quantities[i] = uint64(entry.Quantity)
			}
			fmt.Print(pretty.FormatAccountBalances(cfg.Account, assets, quantities))
			return nil
		},
	}
}

func newLoadgenCmd(cfg *config.ClientConfig) *cobra.Command {
	var ratePerSec int
	var duration time.Duration
	var numeraire, base string
	var minPrice, maxPrice, maxQty uint64

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Repeatedly submit random marketable and non-marketable orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAccount(cfg); err != nil {
				return err
			}
			conn, err := dial(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			interval := time.Second / time.Duration(ratePerSec)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			deadline := time.Now().Add(duration)
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			pair := common.Pair{Numeraire: common.Asset(numeraire), Base: common.Asset(base)}
			var nextOrderID uint64

			for time.Now().Before(deadline) {
				<-ticker.C
				side := common.Bid
				if rng.Intn(2) == 0 {
					side = common.Ask
				}
				nextOrderID++
				req := wire.NewOrderRequest{
					ClientID: uuid.New(),
					Account:  common.AccountID(cfg.Account),
					Pair:     pair,
					Side:     side,
					Price:    common.Price(minPrice + uint64(rng.Int63n(int64(maxPrice-minPrice+1)))),
					Quantity: common.Quantity(1 + rng.Int63n(int64(maxQty))),
					OrderID:  common.OrderID(nextOrderID),
				}
				frame, err := req.Encode()
				if err != nil {
					return err
				}
				if _, err := conn.Write(frame); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ratePerSec, "rate", 10, "orders submitted per second")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "how long to generate load")
	cmd.Flags().StringVar(&numeraire, "numeraire", "USD", "pair numeraire asset")
	cmd.Flags().StringVar(&base, "base", "BTC", "pair base asset")
	cmd.Flags().Uint64Var(&minPrice, "min-price", 40_000, "minimum random price")
	cmd.Flags().Uint64Var(&maxPrice, "max-price", 60_000, "maximum random price")
	cmd.Flags().Uint64Var(&maxQty, "max-qty", 10, "maximum random quantity")
	return cmd
}
