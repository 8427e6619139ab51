package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the direction of a transfer relative to the monitored wallets.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionTransfer Action = "TRANSFER"
)

// Event returns the notification event name for the action ("buy", "sell",
// "transfer").
func (a Action) Event() string {
	return strings.ToLower(string(a))
}

// Amount is a raw on-chain token amount as it appeared in the payload. Raw
// keeps the verbatim text; Value is only meaningful when Valid is true.
type Amount struct {
	Raw   string
	Value decimal.Decimal
	Valid bool
}

// Bounds on a parsed amount. On-chain amounts are u64 base units, so anything
// beyond these is not a real transfer and would only inflate formatting work.
const (
	maxAmountText     = 128
	maxAmountDigits   = 80
	maxAmountExponent = 40
)

// ParseAmount builds an Amount from the verbatim payload text. Text that is
// not a decimal number, or whose magnitude or precision is out of range,
// yields an invalid Amount that still carries Raw.
func ParseAmount(raw string) Amount {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > maxAmountText {
		return Amount{Raw: raw}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{Raw: raw}
	}
	if exp := v.Exponent(); exp < -maxAmountExponent || exp > maxAmountExponent {
		return Amount{Raw: raw}
	}
	if v.NumDigits() > maxAmountDigits {
		return Amount{Raw: raw}
	}
	return Amount{Raw: raw, Value: v, Valid: true}
}

// MissingAmount marks a transfer entry that carried no amount field at all.
func MissingAmount() Amount {
	return Amount{}
}

// Transfer is a normalized token movement, independent of the upstream
// payload shape. Source and Dest are nil when the payload did not name them.
type Transfer struct {
	TokenID string
	Source  *string
	Dest    *string
	Amount  Amount
}

// SourceWallet returns the source address or "" when unknown.
func (t Transfer) SourceWallet() string {
	if t.Source == nil {
		return ""
	}
	return *t.Source
}

// DestWallet returns the destination address or "" when unknown.
func (t Transfer) DestWallet() string {
	if t.Dest == nil {
		return ""
	}
	return *t.Dest
}

// Valuation is the enricher's output for one transfer. The value fields are
// invalid (absent) whenever a price could not be resolved.
type Valuation struct {
	DisplayAmount    string
	Quantity         decimal.NullDecimal
	ValueInReference decimal.NullDecimal
	ValueInUSD       decimal.NullDecimal
}

// Priced reports whether both valuation fields resolved.
func (v Valuation) Priced() bool {
	return v.ValueInReference.Valid && v.ValueInUSD.Valid
}

// ClassifiedTransfer is a Transfer with its action and valuation attached. It
// is consumed once by the alert composer.
type ClassifiedTransfer struct {
	Transfer
	Action Action
	Valuation
}
