// Package pretty formats ledger balances as an aligned text table, the way
// original_source's account_manager.rs print_balances lays out its columns:
// one row per account, one column per asset. The account column is as wide
// as the longest account id (at least 7); each asset column is as wide as its
// symbol (at least 6). Balance values are not measured, so a value wider
// than its column pushes the rest of its row out of alignment.
package pretty

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"heimdall/internal/common"
	"heimdall/internal/ledger"
)

const (
	minAccountWidth = 7
	minAssetWidth   = 6
)

// FormatBalances renders every account in l as a table, accounts and assets
// both sorted for deterministic output (the original orders accounts by
// arrival; a stable ledger snapshot has no such ordering to borrow, so this
// sorts lexically instead).
func FormatBalances(l *ledger.Ledger) string {
	accounts := l.Accounts()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	assetSet := make(map[common.Asset]struct{})
	for _, acc := range accounts {
		for _, a := range l.Assets(acc) {
			assetSet[a] = struct{}{}
		}
	}
	assets := make([]common.Asset, 0, len(assetSet))
	for a := range assetSet {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	accountWidth := minAccountWidth
	for _, acc := range accounts {
		if len(acc) > accountWidth {
			accountWidth = len(acc)
		}
	}

	assetWidths := make([]int, len(assets))
	for i, a := range assets {
		w := len(a)
		if w < minAssetWidth {
			w = minAssetWidth
		}
		assetWidths[i] = w
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", accountWidth, "Account")
	for i, a := range assets {
		fmt.Fprintf(&b, " | %*s", assetWidths[i], centered(string(a), assetWidths[i]))
	}
	b.WriteByte('\n')

	for _, acc := range accounts {
		fmt.Fprintf(&b, "%-*s", accountWidth, string(acc))
		for i, a := range assets {
			val := strconv.FormatUint(uint64(l.Balance(acc, a)), 10)
			fmt.Fprintf(&b, " | %*s", assetWidths[i], val)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatAccountBalances renders one account's balances as an asset/quantity
// table. Used by cmd/client's balance subcommand, which only has a single
// wire.BalanceReportMsg to show rather than a whole ledger snapshot.
func FormatAccountBalances(account string, assets []string, quantities []uint64) string {
	assetWidth := minAssetWidth
	for _, a := range assets {
		if len(a) > assetWidth {
			assetWidth = len(a)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "account %s\n", account)
	for i, a := range assets {
		fmt.Fprintf(&b, "  %-*s %d\n", assetWidth, a, quantities[i])
	}
	return b.String()
}

func centered(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
