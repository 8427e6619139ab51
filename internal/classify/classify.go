// Package classify labels transfers relative to the operator's own wallets.
package classify

import "github.com/alanyoungcy/solwatch/internal/domain"

// WalletSet is an unordered set of monitored wallet addresses.
type WalletSet map[string]struct{}

// NewWalletSet builds a WalletSet from a list of addresses. Empty strings are
// ignored.
func NewWalletSet(wallets []string) WalletSet {
	set := make(WalletSet, len(wallets))
	for _, w := range wallets {
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// Contains reports whether addr is a monitored wallet.
func (s WalletSet) Contains(addr string) bool {
	if addr == "" {
		return false
	}
	_, ok := s[addr]
	return ok
}

// Classify returns BUY when the destination is monitored, SELL when only the
// source is, and TRANSFER otherwise. A self-transfer between monitored
// wallets is a BUY.
func Classify(t domain.Transfer, wallets WalletSet) domain.Action {
	switch {
	case wallets.Contains(t.DestWallet()):
		return domain.ActionBuy
	case wallets.Contains(t.SourceWallet()):
		return domain.ActionSell
	default:
		return domain.ActionTransfer
	}
}
