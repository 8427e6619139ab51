// Package alert renders classified transfers into notification text.
package alert

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/solwatch/internal/domain"
	"github.com/alanyoungcy/solwatch/internal/valuation"
)

// NotAvailable is rendered in place of a valuation that could not be priced.
const NotAvailable = "N/A"

const unknownWallet = "unknown"

// Composer renders alerts. It performs no I/O.
type Composer struct {
	referenceSymbol string
}

// NewComposer creates a Composer that labels reference-asset values with
// symbol (e.g. "SOL").
func NewComposer(symbol string) *Composer {
	if symbol == "" {
		symbol = "SOL"
	}
	return &Composer{referenceSymbol: symbol}
}

// Title returns the headline for an action.
func (c *Composer) Title(a domain.Action) string {
	switch a {
	case domain.ActionBuy:
		return "🟢 BUY Detected"
	case domain.ActionSell:
		return "🔴 SELL Detected"
	default:
		return "📦 Token Transfer Detected"
	}
}

// Body renders everything below the title.
func (c *Composer) Body(ct domain.ClassifiedTransfer, info domain.TokenInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\n", ct.Action)
	fmt.Fprintf(&b, "From: %s\n", walletOrUnknown(ct.SourceWallet()))
	fmt.Fprintf(&b, "To: %s\n", walletOrUnknown(ct.DestWallet()))
	fmt.Fprintf(&b, "Token: %s\n", tokenName(ct.TokenID, info))
	fmt.Fprintf(&b, "Amount: %s\n", ct.DisplayAmount)
	if ct.Quantity.Valid && info.Decimals > 0 {
		fmt.Fprintf(&b, "Quantity: %s\n", valuation.FormatQuantity(ct.Quantity.Decimal))
	}
	b.WriteString("Value: ")
	b.WriteString(c.valueLine(ct.Valuation))
	return b.String()
}

// Compose renders the full alert text: title followed by body.
func (c *Composer) Compose(ct domain.ClassifiedTransfer, info domain.TokenInfo) string {
	return c.Title(ct.Action) + "\n" + c.Body(ct, info)
}

func (c *Composer) valueLine(v domain.Valuation) string {
	if !v.Priced() {
		return NotAvailable
	}
	return fmt.Sprintf("%s %s ($%s)",
		valuation.FormatReference(v.ValueInReference.Decimal),
		c.referenceSymbol,
		valuation.FormatUSD(v.ValueInUSD.Decimal),
	)
}

func walletOrUnknown(w string) string {
	if w == "" {
		return unknownWallet
	}
	return w
}

func tokenName(id string, info domain.TokenInfo) string {
	if info.DisplayName != "" {
		return info.DisplayName
	}
	if id == "" {
		return unknownWallet
	}
	return id
}
