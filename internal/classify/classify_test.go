package classify

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

func transfer(src, dst *string) domain.Transfer {
	return domain.Transfer{TokenID: "T1", Source: src, Dest: dst}
}

func ptr(s string) *string { return &s }

func TestClassify(t *testing.T) {
	wallets := NewWalletSet([]string{"W1", "W2"})

	tests := []struct {
		name string
		src  *string
		dst  *string
		want domain.Action
	}{
		{"incoming to monitored", ptr("X"), ptr("W1"), domain.ActionBuy},
		{"outgoing from monitored", ptr("W2"), ptr("X"), domain.ActionSell},
		{"untracked", ptr("X"), ptr("Y"), domain.ActionTransfer},
		{"self transfer prefers buy", ptr("W1"), ptr("W2"), domain.ActionBuy},
		{"unknown source", nil, ptr("W1"), domain.ActionBuy},
		{"unknown destination", ptr("W1"), nil, domain.ActionSell},
		{"both unknown", nil, nil, domain.ActionTransfer},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(transfer(tc.src, tc.dst), wallets))
		})
	}
}

func TestClassify_ExactMatchOnly(t *testing.T) {
	wallets := NewWalletSet([]string{"Wallet"})
	assert.Equal(t, domain.ActionTransfer, Classify(transfer(ptr("wallet"), ptr("Wallet ")), wallets))
}

func TestClassify_EmptyAddressNeverMatches(t *testing.T) {
	wallets := NewWalletSet([]string{"", "W1"})
	assert.Equal(t, domain.ActionTransfer, Classify(transfer(ptr(""), ptr("")), wallets))
}

func TestClassify_IdempotentAndOrderIndependent(t *testing.T) {
	addrs := []string{"A", "B", "C", "D", "E"}
	tr := transfer(ptr("C"), ptr("Z"))

	want := Classify(tr, NewWalletSet(addrs))
	assert.Equal(t, domain.ActionSell, want)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]string(nil), addrs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		set := NewWalletSet(shuffled)
		assert.Equal(t, want, Classify(tr, set))
		assert.Equal(t, want, Classify(tr, set))
	}
}

func TestAction_Event(t *testing.T) {
	assert.Equal(t, "buy", domain.ActionBuy.Event())
	assert.Equal(t, "transfer", domain.ActionTransfer.Event())
}
